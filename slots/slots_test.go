package slots

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/magiccloud/cqldata"
	"github.com/magiccloud/cqldata/cassandra"
)

type fakeSession struct {
	cql     string
	args    []any
	records []cqldata.Record
}

func (f *fakeSession) Execute(ctx context.Context, cql string, args ...any) ([]cqldata.Record, error) {
	f.cql = cql
	f.args = args
	return f.records, nil
}

func newSignaler(session *fakeSession, connected *[]string) *Signaler {
	s := NewSignaler()
	Register(s, func(ctx context.Context, name string) (Session, error) {
		*connected = append(*connected, name)
		return session, nil
	})
	return s
}

func users() []cqldata.Record {
	cols := []string{"name", "age"}
	return []cqldata.Record{
		{Columns: cols, Values: []any{"alice", 34}},
		{Columns: cols, Values: []any{"bob", 17}},
	}
}

func TestConnectExecute(t *testing.T) {
	session := &fakeSession{records: users()}
	var connected []string
	s := newSignaler(session, &connected)

	exec := NewNode("cql.execute", "select name, age from users where tenant = ? and cloudlet = ?",
		NewNode("tenant", "acme"),
		NewNode("cloudlet", "prod"))
	root := NewNode("cql.connect", "generic|acme", exec)
	if err := s.Signal(context.Background(), "cql.connect", root); err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{"generic|acme"}, connected); diff != "" {
		t.Errorf("connections mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]any{"acme", "prod"}, session.args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
	if root.Value != nil {
		t.Errorf("cql.connect value should be cleared, got %v", root.Value)
	}
	want := NewNode("cql.execute", nil,
		NewNode(".", nil, NewNode("name", "alice"), NewNode("age", 34)),
		NewNode(".", nil, NewNode("name", "bob"), NewNode("age", 17)))
	if diff := cmp.Diff(want, exec); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestExecuteNamedMarkers(t *testing.T) {
	session := &fakeSession{records: users()}
	var connected []string
	s := newSignaler(session, &connected)
	exec := NewNode("cql.execute", "select name, age from users where cloudlet = :cloudlet and tenant = :tenant",
		NewNode("tenant", "acme"),
		NewNode(".filter", "row.age >= 18"),
		NewNode("cloudlet", "prod"))
	if err := s.Signal(context.Background(), "cql.connect", NewNode("cql.connect", nil, exec)); err != nil {
		t.Fatal(err)
	}
	want := []any{
		cassandra.NamedArg{Name: "tenant", Value: "acme"},
		cassandra.NamedArg{Name: "cloudlet", Value: "prod"},
	}
	if diff := cmp.Diff(want, session.args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestBindArgsFallsBackToPositional(t *testing.T) {
	// "owner" has no marker, so every child binds in order
	args := bindArgs("select * from t where tenant = :tenant and owner = ?",
		[]*Node{NewNode("tenant", "acme"), NewNode("owner", "bob")})
	if diff := cmp.Diff([]any{"acme", "bob"}, args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestConnectDefaultsToGeneric(t *testing.T) {
	var connected []string
	s := newSignaler(&fakeSession{}, &connected)
	if err := s.Signal(context.Background(), "cql.connect", NewNode("cql.connect", nil)); err != nil {
		t.Fatal(err)
	}
	if len(connected) != 1 || connected[0] != Generic {
		t.Errorf("connected = %v", connected)
	}
}

func TestExecuteFilter(t *testing.T) {
	session := &fakeSession{records: users()}
	var connected []string
	s := newSignaler(session, &connected)
	exec := NewNode("cql.execute", "select name, age from users",
		NewNode(".filter", "row.age >= 18"))
	if err := s.Signal(context.Background(), "cql.connect", NewNode("cql.connect", nil, exec)); err != nil {
		t.Fatal(err)
	}
	if len(session.args) != 0 {
		t.Errorf(".filter must not be passed as an argument, got %v", session.args)
	}
	if len(exec.Children) != 1 {
		t.Fatalf("got %d rows", len(exec.Children))
	}
	if name, _ := exec.Children[0].Child("name"); name.Value != "alice" {
		t.Errorf("kept %v", name.Value)
	}
}

func TestExecuteInvalidFilter(t *testing.T) {
	var connected []string
	s := newSignaler(&fakeSession{records: users()}, &connected)
	exec := NewNode("cql.execute", "select name from users", NewNode(".filter", "row.name +"))
	err := s.Signal(context.Background(), "cql.connect", NewNode("cql.connect", nil, exec))
	if !cqldata.HasCode(err, cqldata.PreconditionFailed) {
		t.Errorf("expected precondition error, got %v", err)
	}
}

func TestExecuteOutsideConnect(t *testing.T) {
	var connected []string
	s := newSignaler(&fakeSession{}, &connected)
	err := s.Signal(context.Background(), "cql.execute", NewNode("cql.execute", "select now() from system.local"))
	if !cqldata.HasCode(err, cqldata.PreconditionFailed) {
		t.Errorf("expected precondition error, got %v", err)
	}
}

func TestConnectorError(t *testing.T) {
	s := NewSignaler()
	boom := errors.New("no hosts")
	Register(s, func(ctx context.Context, name string) (Session, error) { return nil, boom })
	if err := s.Signal(context.Background(), "cql.connect", NewNode("cql.connect", "x")); !errors.Is(err, boom) {
		t.Errorf("got %v", err)
	}
}

func TestEvalSkipsDataAndUnknownSlots(t *testing.T) {
	s := NewSignaler()
	var called int
	s.Register("count", func(ctx context.Context, s *Signaler, input *Node) error {
		called++
		return nil
	})
	root := NewNode("eval", nil, NewNode(".data", 1), NewNode("count", nil), NewNode("count", nil))
	if err := s.Signal(context.Background(), "eval", root); err != nil {
		t.Fatal(err)
	}
	if called != 2 {
		t.Errorf("called = %d", called)
	}
	root.Add(NewNode("missing", nil))
	if err := s.Signal(context.Background(), "eval", root); !cqldata.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
	if diff := cmp.Diff([]string{"count", "eval"}, s.Names()); diff != "" {
		t.Errorf("Names mismatch (-want +got):\n%s", diff)
	}
}

func TestCelValue(t *testing.T) {
	f, err := NewRowFilter("row.id == '6ba7b810-9dad-11d1-80b4-00c04fd430c8' && row.n == 3 && row.meta.k == 'v'")
	if err != nil {
		t.Fatal(err)
	}
	ok, err := f.Match(map[string]any{
		"id":   stringer("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
		"n":    int32(3),
		"meta": map[string]string{"k": "v"},
	})
	if err != nil || !ok {
		t.Errorf("Match = %v, %v", ok, err)
	}
}

type stringer string

func (s stringer) String() string { return string(s) }

package cassandra

import (
	"fmt"

	"github.com/gocql/gocql"
)

const (
	filesTable = "files"
	cacheTable = "cache"
	logTable   = "log"
)

func schemaStatements(config Config) []string {
	ks := config.Keyspaces
	stmts := make([]string, 0, 7)
	seen := make(map[string]bool, 4)
	for _, k := range []string{ks.Files, ks.Cache, ks.Log, ks.Generic} {
		if seen[k] {
			continue
		}
		seen[k] = true
		stmts = append(stmts, fmt.Sprintf("CREATE KEYSPACE IF NOT EXISTS %s WITH REPLICATION = %s;", k, config.ReplicationClause))
	}
	return append(stmts,
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s.%s(tenant text, cloudlet text, folder text, filename text, content blob, PRIMARY KEY((tenant, cloudlet), folder, filename));",
			ks.Files, filesTable),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s.%s(tenant text, cloudlet text, key text, value text, PRIMARY KEY((tenant, cloudlet), key));",
			ks.Cache, cacheTable),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s.%s(tenant text, cloudlet text, created timeuuid, day text, type text, content text, exception text, meta map<text, text>, PRIMARY KEY((tenant, cloudlet), created)) WITH CLUSTERING ORDER BY (created DESC);",
			ks.Log, logTable),
	)
}

func createSchema(cluster *gocql.ClusterConfig, config Config) error {
	s, err := cluster.CreateSession()
	if err != nil {
		return err
	}
	defer s.Close()
	for _, stmt := range schemaStatements(config) {
		if err := s.Query(stmt).Exec(); err != nil {
			return fmt.Errorf("schema: %w", err)
		}
	}
	return nil
}

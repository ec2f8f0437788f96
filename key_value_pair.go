package cqldata

// KeyValuePair is a tuple, used to return cache items and aggregate results.
type KeyValuePair[TK any, TV any] struct {
	Key   TK `json:"key"`
	Value TV `json:"value"`
}

package storage

import "errors"

var (
	// ErrStorageUnavailable is returned when no backend connection exists
	ErrStorageUnavailable = errors.New("ClickHouse client not available")
	ErrInsertFailed       = errors.New("insert failed")
	ErrInvalidTable       = errors.New("invalid table name")
)

package history

// Store defines the interface for patch history operations.
// Consumers should depend on this interface rather than the concrete *DB
// type to facilitate testing with mocks.
type Store interface {
	RecordRun(r RunRow) (int64, error)
	UpsertFile(f FileRow) error
	GetFile(path string) (*FileRow, error)
	DeleteFile(path string) error
	AllChecksums() (map[string]string, error)
	ListFiles() ([]FileRow, error)
	RecentRuns(limit int) ([]RunRow, error)
	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)

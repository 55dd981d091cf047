package postgres

// MigrationModels lists the gorm models the schema migrations create. The
// document models are unexported, so migrations reach them through here.
func MigrationModels() []any {
	return []any{&documentModel{}, &snapshotModel{}}
}

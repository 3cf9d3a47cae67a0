package postgres

import "context"

// CreateSchema applies all pending migrations.
func (s *PGStore) CreateSchema(ctx context.Context) error {
	return s.Migrate(ctx)
}

// DropSchema drops every interview table and the migrations tracking table.
func (s *PGStore) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		DROP TABLE IF EXISTS interview_migrations CASCADE;
		DROP TABLE IF EXISTS model_request_logs CASCADE;
		DROP TABLE IF EXISTS pre_questions CASCADE;
		DROP TABLE IF EXISTS setting_skills CASCADE;
		DROP TABLE IF EXISTS skills CASCADE;
		DROP TABLE IF EXISTS interview_settings CASCADE;
	`)
	return err
}

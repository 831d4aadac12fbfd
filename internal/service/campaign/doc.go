// Package campaign implements campaign configuration management.
//
// The service layer validates and normalizes campaign records and owns the
// pause/resume lifecycle and bulk import/export. It depends on the
// repository interface defined in this package and should never import
// from api/.
//
// Repository implementations live in repository/postgres/ and repository/memory/.
package campaign

package reference

// AuthorType distinguishes people from corporate authors.
type AuthorType string

const (
	AuthorIndividual   AuthorType = "INDIVIDUAL"
	AuthorOrganization AuthorType = "ORGANIZATION"
)

// Role is the part an author played in a publication.
type Role string

const (
	RoleAuthor         Role = "AUTHOR"
	RoleReviewedAuthor Role = "REVIEWED_AUTHOR"
	RoleContributor    Role = "CONTRIBUTOR"
	RoleEditor         Role = "EDITOR"
	RoleTranslator     Role = "TRANSLATOR"
	RoleSeriesEditor   Role = "SERIES_EDITOR"
)

// Author is a canonical author entity.
type Author struct {
	ID         int64         `json:"id"`
	Type       AuthorType    `json:"type"`
	GivenName  string        `json:"given_name"`  // Primary given name (normalized)
	FamilyName string        `json:"family_name"` // Primary family name (normalized)
	Aliases    []AuthorAlias `json:"aliases,omitempty"`
}

// AuthorAlias is one normalized name variant attached to a canonical author.
// (AuthorID, GivenName, FamilyName) is unique.
type AuthorAlias struct {
	ID         int64  `json:"id"`
	AuthorID   int64  `json:"author_id"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

// RawAuthor is one author string of a raw record in normalized form. The
// verbatim text stays in the raw record payload. Rows are never modified
// after ingest; PublicationID is the owning raw record's publication.
type RawAuthor struct {
	ID            int64  `json:"id"`
	RawRecordID   int64  `json:"raw_record_id"`
	PublicationID int64  `json:"publication_id"`
	Name          string `json:"name"` // Normalized full name
	FamilyName    string `json:"family_name"`
	GivenName     string `json:"given_name"`
	Role          Role   `json:"role"`
	Position      int    `json:"position"`
}

// PublicationAuthor is an ordered, typed authorship edge.
type PublicationAuthor struct {
	PublicationID int64  `json:"publication_id"`
	AuthorID      int64  `json:"author_id"`
	Role          Role   `json:"role"`
	Position      int    `json:"position"`
	FamilyName    string `json:"family_name,omitempty"` // Filled on reads
	GivenName     string `json:"given_name,omitempty"`
}

// AuthorConflict records a group of raw author strings whose names match
// more than one canonical author. Conflicts are left for curator review.
type AuthorConflict struct {
	ID            int64   `json:"id"`
	CommandID     int64   `json:"command_id"`
	PublicationID int64   `json:"publication_id"`
	RawAuthorIDs  []int64 `json:"raw_author_ids"`
	AuthorIDs     []int64 `json:"author_ids"`
	Resolved      bool    `json:"resolved"`
}

package store

import "time"

// LifecycleStatus tracks a project through staged creation.
type LifecycleStatus string

const (
	LifecycleCreating   LifecycleStatus = "CREATING"
	LifecycleInProgress LifecycleStatus = "IN_PROGRESS"
	LifecycleReady      LifecycleStatus = "READY"
	LifecycleCompleted  LifecycleStatus = "COMPLETED"
	LifecycleError      LifecycleStatus = "ERROR"
)

// ParseLifecycleStatus rejects any string outside the closed set.
func ParseLifecycleStatus(raw string) (LifecycleStatus, error) {
	switch LifecycleStatus(raw) {
	case LifecycleCreating, LifecycleInProgress, LifecycleReady, LifecycleCompleted, LifecycleError:
		return LifecycleStatus(raw), nil
	}
	return "", unknownEnum("lifecycle_status", raw)
}

// ProjectStatus distinguishes live projects from archived ones.
type ProjectStatus string

const (
	ProjectActive   ProjectStatus = "active"
	ProjectArchived ProjectStatus = "archived"
)

func ParseProjectStatus(raw string) (ProjectStatus, error) {
	switch ProjectStatus(raw) {
	case ProjectActive, ProjectArchived:
		return ProjectStatus(raw), nil
	}
	return "", unknownEnum("project status", raw)
}

// ProjectType names the workflow a project belongs to.
type ProjectType string

const (
	ProjectTypeTranslation ProjectType = "translation"
	ProjectTypeRAG         ProjectType = "rag"
)

func ParseProjectType(raw string) (ProjectType, error) {
	switch ProjectType(raw) {
	case ProjectTypeTranslation, ProjectTypeRAG:
		return ProjectType(raw), nil
	}
	return "", unknownEnum("project_type", raw)
}

// FileRole classifies what a project file contributes to the workflow.
type FileRole string

const (
	RoleSource     FileRole = "source"
	RoleReference  FileRole = "reference"
	RoleTM         FileRole = "tm"
	RoleTermbase   FileRole = "termbase"
	RoleStyleguide FileRole = "styleguide"
	RoleOther      FileRole = "other"
)

func ParseFileRole(raw string) (FileRole, error) {
	switch FileRole(raw) {
	case RoleSource, RoleReference, RoleTM, RoleTermbase, RoleStyleguide, RoleOther:
		return FileRole(raw), nil
	}
	return "", unknownEnum("file role", raw)
}

// StorageState tracks where a file's bytes live relative to promotion.
type StorageState string

const (
	StorageStaged  StorageState = "STAGED"
	StorageCopied  StorageState = "COPIED"
	StorageMissing StorageState = "MISSING"
	StorageDeleted StorageState = "DELETED"
)

func ParseStorageState(raw string) (StorageState, error) {
	switch StorageState(raw) {
	case StorageStaged, StorageCopied, StorageMissing, StorageDeleted:
		return StorageState(raw), nil
	}
	return "", unknownEnum("storage_state", raw)
}

// TargetStatus tracks one (file, pair) unit of pipeline work.
type TargetStatus string

const (
	TargetPending   TargetStatus = "PENDING"
	TargetExtracted TargetStatus = "EXTRACTED"
	TargetFailed    TargetStatus = "FAILED"
)

func ParseTargetStatus(raw string) (TargetStatus, error) {
	switch TargetStatus(raw) {
	case TargetPending, TargetExtracted, TargetFailed:
		return TargetStatus(raw), nil
	}
	return "", unknownEnum("target status", raw)
}

// ArtifactKind names a pipeline output type.
type ArtifactKind string

const (
	ArtifactXLIFF    ArtifactKind = "xliff"
	ArtifactJLIFF    ArtifactKind = "jliff"
	ArtifactQAReport ArtifactKind = "qa_report"
	ArtifactPreview  ArtifactKind = "preview"
)

func ParseArtifactKind(raw string) (ArtifactKind, error) {
	switch ArtifactKind(raw) {
	case ArtifactXLIFF, ArtifactJLIFF, ArtifactQAReport, ArtifactPreview:
		return ArtifactKind(raw), nil
	}
	return "", unknownEnum("artifact kind", raw)
}

// ArtifactStatus records whether a generation attempt produced output.
type ArtifactStatus string

const (
	ArtifactGenerated ArtifactStatus = "GENERATED"
	ArtifactFailed    ArtifactStatus = "FAILED"
)

func ParseArtifactStatus(raw string) (ArtifactStatus, error) {
	switch ArtifactStatus(raw) {
	case ArtifactGenerated, ArtifactFailed:
		return ArtifactStatus(raw), nil
	}
	return "", unknownEnum("artifact status", raw)
}

// JobType names a pipeline operation recorded in the ledger.
type JobType string

const (
	JobCopyFile     JobType = "COPY_FILE"
	JobExtractXLIFF JobType = "EXTRACT_XLIFF"
	JobConvertJLIFF JobType = "CONVERT_JLIFF"
	JobValidate     JobType = "VALIDATE"
)

func ParseJobType(raw string) (JobType, error) {
	switch JobType(raw) {
	case JobCopyFile, JobExtractXLIFF, JobConvertJLIFF, JobValidate:
		return JobType(raw), nil
	}
	return "", unknownEnum("job_type", raw)
}

// JobState tracks a ledger row through execution.
type JobState string

const (
	JobPending   JobState = "PENDING"
	JobRunning   JobState = "RUNNING"
	JobSucceeded JobState = "SUCCEEDED"
	JobFailed    JobState = "FAILED"
	JobCancelled JobState = "CANCELLED"
)

func ParseJobState(raw string) (JobState, error) {
	switch JobState(raw) {
	case JobPending, JobRunning, JobSucceeded, JobFailed, JobCancelled:
		return JobState(raw), nil
	}
	return "", unknownEnum("job state", raw)
}

// ConversionStatus is the legacy flat conversion-tracking status.
type ConversionStatus string

const (
	ConversionPending   ConversionStatus = "pending"
	ConversionRunning   ConversionStatus = "running"
	ConversionCompleted ConversionStatus = "completed"
	ConversionFailed    ConversionStatus = "failed"
)

func ParseConversionStatus(raw string) (ConversionStatus, error) {
	switch ConversionStatus(raw) {
	case ConversionPending, ConversionRunning, ConversionCompleted, ConversionFailed:
		return ConversionStatus(raw), nil
	}
	return "", unknownEnum("conversion status", raw)
}

// User is a reference entity owning projects.
type User struct {
	ID          string
	Email       string
	DisplayName string
	CreatedAt   time.Time
}

// Client is an optional customer reference on a project.
type Client struct {
	ID   string
	Name string
}

// Domain is an optional subject-area reference on a project.
type Domain struct {
	ID   string
	Name string
}

// Project is the root aggregate.
type Project struct {
	ID              string
	Name            string
	Slug            string
	Type            ProjectType
	RootPath        string
	Status          ProjectStatus
	OwnerUserID     string
	ClientID        string
	DomainID        string
	LifecycleStatus LifecycleStatus
	ArchivedAt      *time.Time
	DefaultSrcLang  string
	DefaultTrgLang  string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Metadata        string
}

// LanguagePair is one (source, target) translation direction.
type LanguagePair struct {
	ID        string
	ProjectID string
	SrcLang   string
	TrgLang   string
	CreatedAt time.Time
}

// File is one imported project document.
type File struct {
	ID            string
	ProjectID     string
	OriginalName  string
	OriginalPath  string
	StoredRelPath string
	Ext           string
	SizeBytes     int64
	HashSHA256    string
	Role          FileRole
	MimeType      string
	StorageState  StorageState
	Importer      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Target pairs a file with a language pair as one unit of pipeline work.
type Target struct {
	ID        string
	FileID    string
	PairID    string
	Status    TargetStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Artifact is one generated pipeline output for a target.
type Artifact struct {
	ID        string
	TargetID  string
	Kind      ArtifactKind
	RelPath   string
	SizeBytes int64
	Checksum  string
	Tool      string
	Status    ArtifactStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validation records a named validator verdict against an artifact.
type Validation struct {
	ID         string
	ArtifactID string
	Validator  string
	Passed     bool
	ResultJSON string
	CreatedAt  time.Time
}

// Job is one idempotent ledger row keyed by a deterministic job key.
type Job struct {
	ID         string
	ProjectID  string
	Type       JobType
	Key        string
	TargetID   string
	ArtifactID string
	State      JobState
	Attempts   int
	Error      string
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}

// Conversion is a legacy flat conversion-tracking row kept for bridging.
type Conversion struct {
	ID            string
	FileID        string
	SrcLang       string
	TgtLang       string
	Version       string
	XLIFFRelPath  string
	JLIFFRelPath  string
	TagMapRelPath string
	Status        ConversionStatus
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Note is a free-form annotation attached to a project.
type Note struct {
	ID           string
	ProjectID    string
	AuthorUserID string
	Body         string
	CreatedAt    time.Time
}

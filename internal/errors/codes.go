// Package errors provides structured error handling for peregrine.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Workspace/environment errors
//   - 2XX: Path errors
//   - 3XX: Extraction errors
//   - 4XX: Query errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryWorkspace indicates workspace structure/environment errors.
	CategoryWorkspace Category = "WORKSPACE"
	// CategoryPath indicates per-path resolution errors.
	CategoryPath Category = "PATH"
	// CategoryExtract indicates keyword extraction errors.
	CategoryExtract Category = "EXTRACT"
	// CategoryQuery indicates malformed search query errors.
	CategoryQuery Category = "QUERY"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Workspace errors (100-199)
	ErrCodeWorkspaceNotFound = "ERR_101_WORKSPACE_NOT_FOUND"
	ErrCodeWorkspaceExists   = "ERR_102_WORKSPACE_EXISTS"
	ErrCodeWorkspaceCorrupt  = "ERR_103_WORKSPACE_CORRUPT"
	ErrCodeWorkspaceLocked   = "ERR_104_WORKSPACE_LOCKED"

	// Path errors (200-299)
	ErrCodePathNotFound   = "ERR_201_PATH_NOT_FOUND"
	ErrCodePathOutOfScope = "ERR_202_PATH_OUT_OF_SCOPE"
	ErrCodePathUnreadable = "ERR_203_PATH_UNREADABLE"

	// Extraction errors (300-399)
	ErrCodeExtractFailed = "ERR_301_EXTRACT_FAILED"

	// Query errors (400-499)
	ErrCodeQueryBadTimeOp = "ERR_401_QUERY_BAD_TIME_OP"
	ErrCodeQueryBadDate   = "ERR_402_QUERY_BAD_DATE"
	ErrCodeQueryBadClock  = "ERR_403_QUERY_BAD_CLOCK"

	// Internal errors (500-599)
	ErrCodeInternal          = "ERR_501_INTERNAL"
	ErrCodeIndexInconsistent = "ERR_502_INDEX_INCONSISTENT"
	ErrCodeSnapshotFailed    = "ERR_503_SNAPSHOT_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "101" from "ERR_101_WORKSPACE_NOT_FOUND")
	numStr := code[4:7]
	if len(numStr) < 1 {
		return CategoryInternal
	}

	switch numStr[0] {
	case '1':
		return CategoryWorkspace
	case '2':
		return CategoryPath
	case '3':
		return CategoryExtract
	case '4':
		return CategoryQuery
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeWorkspaceNotFound, ErrCodeWorkspaceCorrupt, ErrCodeIndexInconsistent:
		// A missing/broken workspace or a violated index invariant aborts
		// the whole command.
		return SeverityFatal
	case ErrCodeExtractFailed, ErrCodeQueryBadDate, ErrCodeQueryBadClock:
		// Recovered by design: extraction failures index an empty keyword
		// set, malformed date/clock input drops the time constraint.
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	// The write lock is the only transient condition: another peregrine
	// process finishes and releases it.
	return code == ErrCodeWorkspaceLocked
}

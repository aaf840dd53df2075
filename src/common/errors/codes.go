package errors

import "net/http"

// Common error codes used across domains
const (
	CodeNotFound       Code = "not_found"
	CodeAlreadyExists  Code = "already_exists"
	CodeInvalidRequest Code = "invalid_request"
	CodeUnauthorized   Code = "unauthorized"
	CodeForbidden      Code = "forbidden"
	CodeConflict       Code = "conflict"
	CodeInternal       Code = "internal_error"
	CodeUnavailable    Code = "unavailable"
	CodeTimeout        Code = "timeout"
	CodeRateLimited    Code = "rate_limited"
)

// ============================================================================
// Workspace Errors
// ============================================================================

var (
	// ErrNoActiveWorkspace is returned when an operation requires an open workspace
	// but none is active.
	ErrNoActiveWorkspace = New(DomainWorkspace, "no_active_workspace", http.StatusPreconditionFailed,
		"no active workspace")
)

// ============================================================================
// Tree Store Errors
// ============================================================================

var (
	// ErrPanelNotFound is returned when a panel identifier does not exist
	ErrPanelNotFound = New(DomainTree, CodeNotFound, http.StatusNotFound,
		"panel not found")

	// ErrInvalidParent is returned when a move/create targets a nonexistent or
	// cyclic parent
	ErrInvalidParent = New(DomainTree, CodeInvalidRequest, http.StatusBadRequest,
		"invalid parent panel")

	// ErrCycleDetected is returned when a parent-chain walk exceeds the depth
	// cap or revisits an already-seen panel
	ErrCycleDetected = New(DomainTree, "cycle_detected", http.StatusConflict,
		"cycle detected in panel tree")

	// ErrSelectedChildNotLive is returned when a selected-child id does not
	// name a current, non-archived child
	ErrSelectedChildNotLive = New(DomainTree, CodeInvalidRequest, http.StatusBadRequest,
		"selected child is not a live child of this panel")
)

// ============================================================================
// Build Pipeline Errors
// ============================================================================

var (
	// ErrSourceNotFound is returned when the build source path does not exist
	ErrSourceNotFound = New(DomainBuild, CodeNotFound, http.StatusNotFound,
		"source path not found")

	// ErrManifestMissing is returned when a source directory has no build manifest
	ErrManifestMissing = New(DomainBuild, "manifest_missing", http.StatusUnprocessableEntity,
		"build manifest missing or incomplete")

	// ErrEntryAmbiguous is returned when no explicit entry is set and more than
	// one conventional entry file is present
	ErrEntryAmbiguous = New(DomainBuild, "entry_ambiguous", http.StatusUnprocessableEntity,
		"ambiguous entry point: multiple conventional entry files found")

	// ErrEntryNotFound is returned when no entry can be resolved
	ErrEntryNotFound = New(DomainBuild, CodeNotFound, http.StatusUnprocessableEntity,
		"no entry point could be resolved")

	// ErrBundleFailed is returned when the bundler step fails
	ErrBundleFailed = New(DomainBuild, "bundle_failed", http.StatusUnprocessableEntity,
		"bundling failed")

	// ErrSizeCapExceeded is returned when an emitted artifact exceeds its cap
	ErrSizeCapExceeded = New(DomainBuild, "size_cap_exceeded", http.StatusUnprocessableEntity,
		"emitted artifact exceeds its size cap")
)

// ============================================================================
// Git Provisioner Errors
// ============================================================================

var (
	// ErrVersionUnresolvable is returned when a version spec cannot be resolved
	// to a commit
	ErrVersionUnresolvable = New(DomainGit, CodeNotFound, http.StatusNotFound,
		"version spec could not be resolved to a commit")

	// ErrProvisionFailed is returned when materialising a working copy fails
	ErrProvisionFailed = New(DomainGit, "provision_failed", http.StatusUnprocessableEntity,
		"failed to provision source tree")
)

// ============================================================================
// Dependency Installer Errors
// ============================================================================

var (
	// ErrPackageNotFound is returned when the installer cannot resolve a
	// specific dependency (caller should trim it and retry)
	ErrPackageNotFound = New(DomainDeps, CodeNotFound, http.StatusNotFound,
		"package not found")

	// ErrPeerConflict is returned when peer-dependency resolution fails; not
	// retried
	ErrPeerConflict = New(DomainDeps, "peer_conflict", http.StatusConflict,
		"peer dependency conflict")

	// ErrDirectoryNotEmpty is returned on install collisions requiring a
	// one-shot reset-and-retry
	ErrDirectoryNotEmpty = New(DomainDeps, "directory_not_empty", http.StatusConflict,
		"dependency directory not empty")
)

// ============================================================================
// ns:// Codec Errors
// ============================================================================

var (
	// ErrInvalidScheme is returned when a URI is not ns:
	ErrInvalidScheme = New(DomainNS, CodeInvalidRequest, http.StatusBadRequest,
		"invalid ns:// scheme")

	// ErrEmptySource is returned when the decoded source path is empty
	ErrEmptySource = New(DomainNS, CodeInvalidRequest, http.StatusBadRequest,
		"empty ns:// source path")

	// ErrUnknownAction is returned for an action value other than navigate/child
	ErrUnknownAction = New(DomainNS, CodeInvalidRequest, http.StatusBadRequest,
		"unknown ns:// action")

	// ErrMalformedJSON is returned when a JSON query parameter fails to parse
	ErrMalformedJSON = New(DomainNS, "malformed_json", http.StatusBadRequest,
		"malformed JSON in ns:// query parameter")

	// ErrInvalidEnv is returned when env contains a non-string value
	ErrInvalidEnv = New(DomainNS, CodeInvalidRequest, http.StatusBadRequest,
		"ns:// env must be string to string")
)

// ============================================================================
// Type-Definition Service Errors
// ============================================================================

var (
	// ErrTypePackageNotFound mirrors ErrPackageNotFound but scoped to the
	// type-definition service's per-package result entries
	ErrTypePackageNotFound = New(DomainTypedefs, CodeNotFound, http.StatusNotFound,
		"package not found")
)

// ============================================================================
// Storage Errors
// ============================================================================

var (
	// ErrStorageNotFound is returned when a storage object cannot be found
	ErrStorageNotFound = New(DomainStorage, CodeNotFound, http.StatusNotFound,
		"object not found in storage")

	// ErrStorageUploadFailed is returned when a storage upload fails
	ErrStorageUploadFailed = New(DomainStorage, "upload_failed", http.StatusInternalServerError,
		"failed to upload object to storage")

	// ErrStorageDownloadFailed is returned when a storage download fails
	ErrStorageDownloadFailed = New(DomainStorage, "download_failed", http.StatusInternalServerError,
		"failed to download object from storage")

	// ErrStorageDeleteFailed is returned when a storage delete fails
	ErrStorageDeleteFailed = New(DomainStorage, "delete_failed", http.StatusInternalServerError,
		"failed to delete object from storage")

	// ErrStorageUnavailable is returned when the storage backend is unavailable
	ErrStorageUnavailable = New(DomainStorage, CodeUnavailable, http.StatusServiceUnavailable,
		"storage backend unavailable")
)

// ============================================================================
// Database Errors
// ============================================================================

var (
	// ErrDatabaseConnection is returned when database connection fails
	ErrDatabaseConnection = New(DomainDatabase, "connection_failed", http.StatusServiceUnavailable,
		"database connection failed")

	// ErrDatabaseQuery is returned when a database query fails
	ErrDatabaseQuery = New(DomainDatabase, "query_failed", http.StatusInternalServerError,
		"database query failed")

	// ErrDatabaseTransaction is returned when a database transaction fails
	ErrDatabaseTransaction = New(DomainDatabase, "transaction_failed", http.StatusInternalServerError,
		"database transaction failed")
)

// ============================================================================
// Validation Errors
// ============================================================================

var (
	// ErrValidationFailed is returned when request validation fails
	ErrValidationFailed = New(DomainValidation, "validation_failed", http.StatusBadRequest,
		"validation failed")

	// ErrMissingRequiredField is returned when a required field is missing
	ErrMissingRequiredField = New(DomainValidation, "missing_field", http.StatusBadRequest,
		"missing required field")

	// ErrInvalidFieldValue is returned when a field value is invalid
	ErrInvalidFieldValue = New(DomainValidation, "invalid_value", http.StatusBadRequest,
		"invalid field value")

	// ErrInvalidJSON is returned when JSON parsing fails
	ErrInvalidJSON = New(DomainValidation, "invalid_json", http.StatusBadRequest,
		"invalid JSON")
)

// ============================================================================
// Internal Errors
// ============================================================================

var (
	// ErrInternal is a generic internal server error
	ErrInternal = New(DomainInternal, CodeInternal, http.StatusInternalServerError,
		"internal server error")

	// ErrNotImplemented is returned when a feature is not implemented
	ErrNotImplemented = New(DomainInternal, "not_implemented", http.StatusNotImplemented,
		"not implemented")
)

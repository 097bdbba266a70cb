// Package workspace uploads generated files to a caller's remote workspace.
//
// HTTPUploader talks to the workspace file API with a multipart form
// (path, skipSummarizer, file). BlobUploader stores the same files in a
// blob.Store for deployments without a workspace API.
package workspace

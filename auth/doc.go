// Package auth carries the caller identity attached to a context, trimmed
// down to the tenant-scoping concern the rest of this module needs: binding
// and retrieving an Identity, and reading its TenantID back out.
package auth

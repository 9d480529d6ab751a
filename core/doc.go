// Package core contains the provisioning connector's domain contracts,
// entities, and orchestration logic: attribute mapping, filter translation,
// membership consistency, and the user and group services. Storage adapters
// must depend on this package; core must not depend on storage-specific or
// transport-specific adapters.
package core

// Package domain holds the entity model of the platform:
// schedulable jobs and workflow steps on one side, and descriptors of
// the multi-tenant database models on the other.
package domain

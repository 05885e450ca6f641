// Package domain contains the core entities of the outreach platform:
// tenants, leads, analyses, offers, suppressions, snapshots and jobs.
//
// Types here are plain data carriers shared by services, workers and the
// HTTP layer. They hold no business logic beyond small pure helpers
// (state-machine checks, status predicates). Persistence lives in the
// services that own each entity.
package domain

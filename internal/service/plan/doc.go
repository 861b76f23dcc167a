// Package plan implements the campaign plan lifecycle.
//
// A plan moves draft → approved → executed and never backwards. Items are
// editable only while the plan is a draft; every edit is written together
// with freshly recomputed rollups and an audit entry, under a per-plan lock.
// Execution hands included items to the order system in groups and tracks
// each group so a retry only resubmits what failed.
//
// Repository implementations live in repository/postgres/.
package plan

// Package recommendation scores, ranks, and classifies direct-mail campaign
// candidates for retail stores.
//
// Scoring is a pure function of one store's metrics, one campaign's metrics,
// an optional geographic pattern, and an explicit Config. Nothing in this
// package reads the clock or global state: the evaluation date is always
// passed in. Ranking and batch generation build on Score and are safe to run
// concurrently over an immutable metrics snapshot.
//
// Classification (auto-approve / needs-review / skip) and view filters are
// applied after scoring so policy can change without changing scores.
package recommendation

// Package preflight provides readiness checks for the filesystem paths,
// AWS credentials and deploy settings that nemoship depends on.
//
// These checks run in two contexts:
//   - The "nemoship preflight" command runs RunAll and prints a table.
//   - The "nemoship deploy" command runs RunAll first and refuses to start
//     when a required check fails, to avoid uploading gigabytes of
//     checkpoint for a doomed deployment.
//
// AWS checks are skipped when no identity client is supplied.
package preflight

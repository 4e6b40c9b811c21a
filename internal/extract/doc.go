// Package extract answers questions about a checked-out repository tree
// without running anything in it: which version the tree declares, which
// packages it requires, which python it targets, and which manifest files
// drive its installation. Malformed manifests are skipped, never fatal;
// extraction reports what can be learned, not whether the tree is well
// formed.
package extract

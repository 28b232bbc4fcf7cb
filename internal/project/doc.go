// Package project orchestrates project creation and maintenance: it
// validates names and language pairs, seeds the database rows, copies
// imported files through an isolated staging tree, and promotes the
// tree atomically once every copy has been hashed and recorded.
package project

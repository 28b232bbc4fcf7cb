// Command loom manages translation projects and their conversion
// pipeline: creating projects with staged file import, planning and
// running XLIFF extraction and JLIFF conversion, bridging databases
// from the previous implementation, and inspecting jobs and file
// integrity.
package main

package errors

import "moduletsx/pkg/source"

// Position represents a specific location in a module's source code.
// It includes line and column numbers (1-based) for human-readability,
// and byte offsets (0-based) for tooling.
type Position struct {
	Line     int          // 1-based line number
	Column   int          // 1-based column number (rune index within the line)
	StartPos int          // 0-based byte offset of the start of the error span
	EndPos   int          // 0-based byte offset of the end of the error span (exclusive)
	Source   *source.File // Reference to the source file
}

// PositionAt builds a Position for the byte span [start, end) of file
func PositionAt(file *source.File, start, end int) Position {
	pos := Position{StartPos: start, EndPos: end, Source: file}
	if file != nil {
		pos.Line, pos.Column = file.Location(start)
	}
	return pos
}

// Package stylesheet produces the code of loadable units for stylesheet resources.
package stylesheet

import (
	"fmt"

	"moduletsx/pkg/syntax"
)

// LinkModule returns code that attaches a <link rel="stylesheet"> pointing at
// sourceURL to the document. The stylesheet text itself is not needed.
func LinkModule(sourceURL string) string {
	return fmt.Sprintf(`const link = document.createElement("link");
link.rel = "stylesheet";
link.href = %s;
document.head.appendChild(link);
`, syntax.JSONString(sourceURL))
}

package inspect

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/crashscan/backend/internal/parser"
	"github.com/sirupsen/logrus"
)

// LogErrorInspector reports error lines found in the *.log files of a
// folder. Crash logs are skipped.
type LogErrorInspector struct {
	Folder        string
	CatchErrors   []string
	ExcludeFiles  []string
	ExcludeErrors []string
	Log           logrus.FieldLogger
}

// Inspect implements Inspector.
func (li LogErrorInspector) Inspect(ctx context.Context) string {
	if li.Folder == "" {
		return ""
	}
	files, err := filepath.Glob(filepath.Join(li.Folder, "*.log"))
	if err != nil {
		return ""
	}
	sort.Strings(files)

	var b strings.Builder
	for _, file := range files {
		if ctx.Err() != nil {
			break
		}
		if strings.Contains(filepath.Base(file), "crash-") || containsFold(file, li.ExcludeFiles) {
			continue
		}

		data, err := os.ReadFile(file)
		if err == nil {
			var text string
			text, err = parser.DecodeText(data)
			if err == nil {
				li.writeErrors(&b, file, parser.SplitLines(text))
				continue
			}
		}

		fmt.Fprintf(&b, "❌ ERROR : Unable to scan this log file :\n  %s\n", file)
		if li.Log != nil {
			li.Log.WithError(err).WithField("file", file).Warn("unable to scan log file")
		}
	}
	return b.String()
}

func (li LogErrorInspector) writeErrors(b *strings.Builder, file string, lines []string) {
	var found []string
	for _, line := range lines {
		if containsFold(line, li.CatchErrors) && !containsFold(line, li.ExcludeErrors) {
			found = append(found, line)
		}
	}
	if len(found) == 0 {
		return
	}

	b.WriteString("[!] CAUTION : THE FOLLOWING LOG FILE REPORTS ONE OR MORE ERRORS! \n")
	b.WriteString("[ Errors do not necessarily mean that the mod is not working. ] \n")
	fmt.Fprintf(b, "\nLOG PATH > %s \n", file)
	for _, line := range found {
		fmt.Fprintf(b, "ERROR > %s\n", line)
	}
	fmt.Fprintf(b, "\n* TOTAL NUMBER OF DETECTED LOG ERRORS * : %d \n", len(found))
}

func containsFold(s string, subs []string) bool {
	lower := strings.ToLower(s)
	for _, sub := range subs {
		if sub != "" && strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

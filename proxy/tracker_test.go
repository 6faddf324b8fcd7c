package proxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatementTrackerResolvesBoundPortal(t *testing.T) {
	t.Parallel()

	tr := NewStatementTracker()
	tr.RecordParse("stmt1", "SELECT 1")
	tr.RecordBind("", "stmt1")

	assert.Equal(t, "SELECT 1", tr.QueryFor(""))
}

func TestStatementTrackerUnknownPortalIsEmpty(t *testing.T) {
	t.Parallel()

	tr := NewStatementTracker()
	assert.Equal(t, "", tr.QueryFor("nope"))
}

func TestStatementTrackerCloseForgetsStatement(t *testing.T) {
	t.Parallel()

	tr := NewStatementTracker()
	tr.RecordParse("stmt1", "SELECT 1")
	tr.RecordBind("p1", "stmt1")
	tr.RecordClose(true, "stmt1")

	assert.Equal(t, "", tr.QueryFor("p1"))
}

func TestStatementTrackerCloseForgetsPortal(t *testing.T) {
	t.Parallel()

	tr := NewStatementTracker()
	tr.RecordParse("stmt1", "SELECT 1")
	tr.RecordBind("p1", "stmt1")
	tr.RecordClose(false, "p1")

	assert.Equal(t, "", tr.QueryFor("p1"))
}

func TestStatementTrackerParseOverwritesPriorName(t *testing.T) {
	t.Parallel()

	tr := NewStatementTracker()
	tr.RecordParse("stmt1", "SELECT 1")
	tr.RecordBind("p1", "stmt1")
	tr.RecordParse("stmt1", "SELECT 2")

	assert.Equal(t, "SELECT 2", tr.QueryFor("p1"))
}

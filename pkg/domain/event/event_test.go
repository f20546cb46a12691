package event

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dshills/runwatch/pkg/domain/types"
)

func TestTag_Kind(t *testing.T) {
	tests := []struct {
		tag  Tag
		want TagKind
	}{
		{"sys.end.all", KindEndAll},
		{"sys.node.start", KindNodeStart},
		{"sys.node.update", KindNodeUpdate},
		{"sys.data.required", KindDataRequired},
		{"task.build.good", KindCompleted},
		{"task", KindCompleted},
		{"merge.join.good", KindCompleted},
		{"sys.state", KindUnknown},
		{"trigger.good", KindUnknown},
		{"", KindUnknown},
		{"Task.build.good", KindUnknown},
	}

	for _, tt := range tests {
		t.Run(string(tt.tag), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.tag.Kind())
		})
	}
}

func TestRunRef_RunID(t *testing.T) {
	ref := RunRef{FlowID: "build", HostID: "h1", Seq: "12"}
	assert.Equal(t, types.RunID("h1-12"), ref.RunID())
}

func TestTagKind_String(t *testing.T) {
	assert.Equal(t, "completed", KindCompleted.String())
	assert.Equal(t, "unknown", TagKind(99).String())
}

package pagetext

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVisibleLines_ExtractsTextInOrder(t *testing.T) {
	lines := VisibleLines(`
<body>
  <h1>Projects</h1>
  <p>You have <b>3</b> active projects.</p>
  <button>New Project</button>
</body>`)

	assert.Equal(t, []string{"Projects", "You have", "3", "active projects.", "New Project"}, lines)
}

func TestVisibleLines_SkipsNonContentMarkup(t *testing.T) {
	lines := VisibleLines(`
<body>
  <script>alert("nope")</script>
  <style>.x { color: red }</style>
  <!-- a comment -->
  <noscript>enable javascript</noscript>
  <div>Visible</div>
</body>`)

	joined := strings.Join(lines, " ")
	assert.Equal(t, "Visible", joined)
}

func TestVisibleLines_SkipsHiddenElements(t *testing.T) {
	lines := VisibleLines(`
<body>
  <div hidden>secret</div>
  <div aria-hidden="true">also secret</div>
  <div style="display: none">still secret</div>
  <div>shown</div>
</body>`)

	assert.Equal(t, []string{"shown"}, lines)
}

func TestVisibleLines_CollapsesWhitespace(t *testing.T) {
	lines := VisibleLines("<body><p>  lots \n\t of    space  </p></body>")
	assert.Equal(t, []string{"lots of space"}, lines)
}

func TestVisibleLines_GarbageInput(t *testing.T) {
	assert.NotPanics(t, func() {
		VisibleLines("<<<>>>")
		VisibleLines("")
	})
}

func TestVisibleLines_CapsOutput(t *testing.T) {
	var b strings.Builder
	b.WriteString("<body>")
	for i := 0; i < 2*maxLines; i++ {
		b.WriteString("<p>line</p>")
	}
	b.WriteString("</body>")

	lines := VisibleLines(b.String())
	assert.Len(t, lines, maxLines)
}

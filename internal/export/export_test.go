package export

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/lotas/tabtree/internal/i18n"
	"github.com/lotas/tabtree/internal/types"
)

func sampleForest() []*types.TabNode {
	grandchild := &types.TabNode{ID: 3, URL: "https://a.example"}
	child := &types.TabNode{ID: 2, Title: "B", URL: "https://b.example", Children: []*types.TabNode{grandchild}}
	root := &types.TabNode{ID: 1, Title: "http://example", URL: "https://a.example", Children: []*types.TabNode{child}}
	blank := &types.TabNode{ID: 4, Title: " Blank ", URL: ""}
	return []*types.TabNode{root, blank}
}

func TestTSV_Layout(t *testing.T) {
	out := TSV(sampleForest(), i18n.New("en"))
	lines := strings.Split(out, "\n")
	if len(lines) != 6 {
		t.Fatalf("got %d lines, want 2 headers + 4 rows:\n%s", len(lines), out)
	}

	wantWidth := HeaderWidth(3)
	if wantWidth != 11 {
		t.Fatalf("HeaderWidth(3) = %d", wantWidth)
	}
	for i, line := range lines {
		if got := len(strings.Split(line, "\t")); got != wantWidth {
			t.Errorf("line %d has %d columns, want %d: %q", i, got, wantWidth, line)
		}
	}

	wantHeader1 := "\tDeepest node\t\tLevel 1\t\tLevel 2\t\tLevel 3\t\t\t"
	if lines[0] != wantHeader1 {
		t.Errorf("header1 = %q\nwant      %q", lines[0], wantHeader1)
	}
	wantHeader2 := "#\tID\tTitle\tID\tTitle\tID\tTitle\tID\tTitle\tURL\tRemarks"
	if lines[1] != wantHeader2 {
		t.Errorf("header2 = %q", lines[1])
	}

	rows := []string{
		"1\t1\t'http://example\t1\t'http://example\t-\t-\t-\t-\t'https://a.example\tDuplicate URL [2 items No: 1, 3]",
		"2\t2\tB\t1\t'http://example\t2\tB\t-\t-\t'https://b.example\t ",
		"3\t3\t(no title)\t1\t'http://example\t2\tB\t3\t(no title)\t'https://a.example\tDuplicate URL [2 items No: 1, 3]",
		"4\t4\tBlank\t4\tBlank\t-\t-\t-\t-\t'\t ",
	}
	for i, want := range rows {
		if lines[i+2] != want {
			t.Errorf("row %d = %q\nwant     %q", i+1, lines[i+2], want)
		}
	}
}

func TestTSV_Japanese(t *testing.T) {
	out := TSV(sampleForest(), i18n.New("ja"))
	if !strings.Contains(out, "重複あり [2件 No: 1, 3]") {
		t.Errorf("missing localized remark:\n%s", out)
	}
	if !strings.Contains(out, "階層1") {
		t.Errorf("missing localized level header:\n%s", out)
	}
}

func TestTSV_EmptyForest(t *testing.T) {
	out := TSV(nil, i18n.New("en"))
	lines := strings.Split(out, "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines", len(lines))
	}
	if got := len(strings.Split(lines[1], "\t")); got != HeaderWidth(0) {
		t.Errorf("got %d columns", got)
	}
}

func TestJSON_RoundTrip(t *testing.T) {
	out, err := JSON(sampleForest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(out, `"children": []`) {
		t.Error("empty children must be omitted")
	}
	var parsed []*types.TabNode
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v\noutput:\n%s", err, out)
	}
	if len(parsed) != 2 || types.CountNodes(parsed) != 4 {
		t.Fatalf("got %d roots / %d nodes", len(parsed), types.CountNodes(parsed))
	}
	if parsed[0].Children[0].Children[0].ID != 3 {
		t.Error("nesting lost")
	}
}

func TestJSON_EmptyForest(t *testing.T) {
	out, err := JSON(nil)
	if err != nil {
		t.Fatal(err)
	}
	if out != "[]" {
		t.Errorf("got %q, want []", out)
	}
}

func TestFileBaseName(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	ts := time.Date(2025, 1, 31, 15, 4, 5, 0, time.UTC)
	if got := FileBaseName(ts, tokyo); got != "firefox_tab_list_20250201_000405" {
		t.Errorf("got %q", got)
	}
}

func TestMarkdown_Nested(t *testing.T) {
	ts := time.Date(2025, 1, 31, 15, 4, 0, 0, time.UTC)
	result := Markdown(sampleForest(), ts)

	if !strings.Contains(result, "# Firefox Tab Tree (4 tabs)") {
		t.Errorf("missing header, got:\n%s", result)
	}
	if !strings.Contains(result, "- [http://example](https://a.example) — a.example") {
		t.Errorf("missing root link, got:\n%s", result)
	}
	if !strings.Contains(result, "  - [B](https://b.example)") {
		t.Errorf("child not indented, got:\n%s", result)
	}
	if !strings.Contains(result, "    - [https://a.example](https://a.example)") {
		t.Errorf("untitled grandchild should fall back to its URL, got:\n%s", result)
	}
	if !strings.Contains(result, "\n- Blank\n") {
		t.Errorf("url-less tab should be plain text, got:\n%s", result)
	}
}

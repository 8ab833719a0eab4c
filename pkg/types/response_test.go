package types

import (
	"encoding/json"
	"strconv"
	"testing"
)

func TestMapPageEmptyItemsSerializeAsArray(t *testing.T) {
	page := MapPage([]int(nil), "", strconv.Itoa)
	raw, err := json.Marshal(page)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"items":[]}` {
		t.Fatalf("unexpected body %s", raw)
	}
}

func TestMapPageConvertsInOrder(t *testing.T) {
	page := MapPage([]int{3, 1}, "next", strconv.Itoa)
	if len(page.Items) != 2 || page.Items[0] != "3" || page.Items[1] != "1" || page.NextCursor != "next" {
		t.Fatalf("unexpected page %+v", page)
	}
}

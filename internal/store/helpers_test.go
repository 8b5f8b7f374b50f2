package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/unilost/lostfound/internal/model"
)

func mustUser(t *testing.T, database *sql.DB, name string) *model.User {
	t.Helper()
	u, err := CreateUser(context.Background(), database, name, name+"@uni.edu", "hash", model.RoleUser)
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", name, err)
	}
	return u
}

func itemInput(name string, typ model.ItemType) model.ItemInput {
	return model.ItemInput{
		Name:          name,
		Description:   name + " description",
		Category:      "Bags",
		Type:          typ,
		Location:      "Main Library",
		DateLostFound: "2024-03-01",
	}
}

func mustItem(t *testing.T, database *sql.DB, ownerID int64, name string, typ model.ItemType) *model.Item {
	t.Helper()
	item, err := CreateItem(context.Background(), database, ownerID, itemInput(name, typ), ItemImage{})
	if err != nil {
		t.Fatalf("CreateItem(%s): %v", name, err)
	}
	return item
}

func mustApprove(t *testing.T, database *sql.DB, id int64) {
	t.Helper()
	if _, err := ApplyItemAction(context.Background(), database, id, model.ActionApprove); err != nil {
		t.Fatalf("approving item %d: %v", id, err)
	}
}

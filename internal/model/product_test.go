package model

import "testing"

func TestProductOwnedBy(t *testing.T) {
	p := &Product{OwnerID: "seller-1"}

	if !p.OwnedBy("seller-1") {
		t.Error("expected owner to own product")
	}
	if p.OwnedBy("buyer-1") {
		t.Error("expected other user not to own product")
	}
	if p.OwnedBy("") {
		t.Error("expected empty id not to own product")
	}

	var nilProduct *Product
	if nilProduct.OwnedBy("seller-1") {
		t.Error("expected nil product to have no owner")
	}
}

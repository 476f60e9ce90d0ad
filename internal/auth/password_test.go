package auth

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashPasswordClampsOutOfRangeCost(t *testing.T) {
	for _, cost := range []int{-1, 0, bcrypt.MaxCost + 1} {
		hash, err := HashPassword("hunter2!", cost)
		if err != nil {
			t.Fatalf("cost %d: %v", cost, err)
		}
		if err := ComparePassword(hash, "hunter2!"); err != nil {
			t.Fatalf("cost %d: hash does not verify: %v", cost, err)
		}
	}
}

func TestComparePasswordRejectsWrongPassword(t *testing.T) {
	hash, err := HashPassword("hunter2!", bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	if err := ComparePassword(hash, "hunter3!"); err == nil {
		t.Fatal("wrong password must not verify")
	}
}

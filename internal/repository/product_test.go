// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository_test

import (
	"context"
	"testing"

	"codeberg.org/oliverandrich/productscan/internal/models"
	"codeberg.org/oliverandrich/productscan/internal/repository"
	"codeberg.org/oliverandrich/productscan/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateProduct(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "alice")

	p := &models.Product{
		UserID:         user.ID,
		Name:           "RTX 4080",
		Description:    "Graphics card",
		Brand:          "NVIDIA",
		Category:       "Electronics",
		IdentifiedText: "NVIDIA RTX 4080",
		Metadata:       models.Metadata{"classifier": "fallback"},
	}
	require.NoError(t, repo.CreateProduct(ctx, p))
	assert.NotZero(t, p.ID)

	stored, err := repo.GetProductByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, stored.UserID)
	assert.Equal(t, "NVIDIA", stored.Brand)
	assert.Equal(t, "NVIDIA RTX 4080", stored.IdentifiedText)
	assert.Equal(t, "fallback", stored.Metadata["classifier"])
}

func TestCreateProduct_RequiresOwner(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	err := repo.CreateProduct(context.Background(), &models.Product{Name: "x", Description: "y"})

	assert.Error(t, err)
}

func TestCreateProduct_UnknownOwner(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	err := repo.CreateProduct(context.Background(), &models.Product{UserID: 999, Name: "x", Description: "y"})

	assert.Error(t, err)
}

func TestListProductsByUser(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	alice := testutil.NewTestUser(t, repo, "alice")
	bob := testutil.NewTestUser(t, repo, "bob")
	first := testutil.NewTestProduct(t, repo, alice.ID, "First", "Sony")
	second := testutil.NewTestProduct(t, repo, alice.ID, "Second", "Sony")
	testutil.NewTestProduct(t, repo, bob.ID, "Other", "Apple")

	products, err := repo.ListProductsByUser(ctx, alice.ID)

	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, second.ID, products[0].ID)
	assert.Equal(t, first.ID, products[1].ID)
}

func TestListProductsByUser_Empty(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	products, err := repo.ListProductsByUser(context.Background(), 1)

	require.NoError(t, err)
	assert.NotNil(t, products)
	assert.Empty(t, products)
}

func TestSearchProducts(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "alice")
	gpu := testutil.NewTestProduct(t, repo, user.ID, "RTX 4080", "NVIDIA")
	phone := testutil.NewTestProduct(t, repo, user.ID, "iPhone 15", "Apple")
	testutil.NewTestProduct(t, repo, user.ID, "Walkman", "Sony")

	tests := []struct {
		query string
		want  []int64
	}{
		{"nvidia", []int64{gpu.ID}},
		{"IPHONE", []int64{phone.ID}},
		{"description of", []int64{gpu.ID, phone.ID, gpu.ID + 2}},
		{"nothing", nil},
		{"100%", nil},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			products, err := repo.SearchProducts(ctx, tt.query)
			require.NoError(t, err)

			ids := make([]int64, 0, len(products))
			for _, p := range products {
				ids = append(ids, p.ID)
			}
			if tt.want == nil {
				assert.Empty(t, ids)
				return
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestSearchProducts_Idempotent(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "alice")
	testutil.NewTestProduct(t, repo, user.ID, "RTX 4080", "NVIDIA")
	testutil.NewTestProduct(t, repo, user.ID, "RTX 4090", "NVIDIA")

	first, err := repo.SearchProducts(ctx, "rtx")
	require.NoError(t, err)
	second, err := repo.SearchProducts(ctx, "rtx")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSearchProducts_FoldsNonASCII(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "alice")
	match := testutil.NewTestProduct(t, repo, user.ID, "Ölfilter", "Ärmel & Söhne")
	testutil.NewTestProduct(t, repo, user.ID, "Luftfilter", "Bosch")

	for _, query := range []string{"ölfilter", "ÖLFILTER", "ärmel", "SÖHNE"} {
		t.Run(query, func(t *testing.T) {
			products, err := repo.SearchProducts(ctx, query)
			require.NoError(t, err)
			require.Len(t, products, 1)
			assert.Equal(t, match.ID, products[0].ID)
		})
	}
}

func TestSearchProducts_EscapesWildcards(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "alice")
	testutil.NewTestProduct(t, repo, user.ID, "abc", "x")
	match := testutil.NewTestProduct(t, repo, user.ID, "a_c", "x")

	products, err := repo.SearchProducts(ctx, "a_c")

	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, match.ID, products[0].ID)
}

func TestDeleteUserProduct(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	alice := testutil.NewTestUser(t, repo, "alice")
	bob := testutil.NewTestUser(t, repo, "bob")
	p := testutil.NewTestProduct(t, repo, alice.ID, "RTX", "NVIDIA")

	assert.ErrorIs(t, repo.DeleteUserProduct(ctx, p.ID, bob.ID), repository.ErrNotFound)
	require.NoError(t, repo.DeleteUserProduct(ctx, p.ID, alice.ID))

	_, err := repo.GetProductByID(ctx, p.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestMostActiveUser(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	_, err := repo.MostActiveUser(ctx)
	require.ErrorIs(t, err, repository.ErrNotFound)

	alice := testutil.NewTestUser(t, repo, "alice")
	bob := testutil.NewTestUser(t, repo, "bob")
	testutil.NewTestProduct(t, repo, alice.ID, "a", "x")
	testutil.NewTestProduct(t, repo, bob.ID, "b1", "x")
	testutil.NewTestProduct(t, repo, bob.ID, "b2", "x")

	top, err := repo.MostActiveUser(ctx)

	require.NoError(t, err)
	assert.Equal(t, bob.ID, top.ID)
	assert.Equal(t, "bob", top.Username)
	assert.Equal(t, int64(2), top.ProductCount)

	count, err := repo.CountProductsByUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

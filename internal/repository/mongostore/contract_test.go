package mongostore_test

import (
	"context"
	"testing"

	"spark-backend/internal/repository/mongostore"
	"spark-backend/internal/repository/storetest"

	"github.com/stretchr/testify/require"
)

func TestMongoMatchStore(t *testing.T) {
	uri := storetest.RequireEnv(t, storetest.MongoEnv)
	ctx := context.Background()

	db, err := mongostore.Connect(ctx, uri, "spark_test")
	require.NoError(t, err)
	require.NoError(t, db.EnsureIndexes(ctx))

	stores := db.Stores()
	t.Cleanup(func() { _ = stores.Close(context.Background()) })

	storetest.RunMatchStore(t, stores)
}

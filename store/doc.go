// Package store provides typed repositories over DynamoDB with per-operation
// telemetry and threshold warnings.
//
// # Client
//
// A [Client] owns the single connection of a process. Open it once with a
// [Config] and close it once at shutdown:
//
//	client := store.NewClient()
//	db, err := client.Open(ctx, store.Config{
//	    Endpoint:         "https://dynamodb.eu-west-1.amazonaws.com",
//	    Key:              key,
//	    Secret:           secret,
//	    Database:         "shop",
//	    PreferredRegions: []string{"eu-west-1", "eu-central-1"},
//	})
//	defer client.Close()
//
// Each entity container maps to the table "<database>.<container>" whose hash
// key is the string attribute "id".
//
// # Repositories
//
// A [Repository] is created per entity type from a [schema.Type]. The schema
// is validated when the repository is created; entities are validated against
// it again before every write.
//
//	orders := store.MustRepository[Order](client, orderSchema)
//	order, err := orders.Get(ctx, "o-1")           // nil, nil when absent
//	err = orders.Insert(ctx, &Order{ID: "o-2"})     // ErrConflict when present
//	err = orders.Delete(ctx, "o-3")                 // ErrNotFound when absent
//	paid, err := orders.Find(ctx, store.NewQuery("#s = :s",
//	    store.Name("s", "status"), store.Value("s", "PAID")))
//
// # Telemetry
//
// Every operation reports [Metrics] to the client's [Observer] on every exit
// path. Operations slower than Config.SlowOperationThreshold raise a
// [WarningSlowOperation] warning; Find results larger than
// Config.TooManyRowsThreshold raise a [WarningTooManyRows] warning.
//
// # Errors
//
//   - [ErrConfiguration] - missing setting or client already open
//   - [ErrInvalidArgument] - empty id or malformed query
//   - [ErrInvalidEntity] - entity violates its schema ([ValidationError])
//   - [ErrNotFound] - delete of a missing document, or missing container
//   - [ErrConflict] - insert of an existing id
//   - [ErrThrottled] - request rejected for capacity
//   - [ErrAmbiguousResult] - FindOne matched more than one document
//   - [ErrStore] - any error reported by the store ([StoreError])
package store

// Package mongodb manages the MongoDB connection used when the credential
// store runs on MongoDB instead of SQLite.
//
// Connect verifies the server with a ping before returning, so a returned
// Client is known to be reachable. Callers take collections from it and
// build their own stores on top:
//
//	client, err := mongodb.Connect(ctx, cfg.MongoDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	users := client.Collection(cfg.MongoDB.Collection)
package mongodb

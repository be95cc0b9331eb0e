package db

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	MenuCollection          *mongo.Collection
	OrdersCollection        *mongo.Collection
	ReservationsCollection  *mongo.Collection
	ConversationsCollection *mongo.Collection
	AdminsCollection        *mongo.Collection
	ConfirmTasksCollection  *mongo.Collection
	Client                  *mongo.Client
)

// Initialize MongoDB connection
func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found; using system environment")
	}

	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}

	var err error
	Client, err = mongo.Connect(context.TODO(), options.Client().ApplyURI(uri))
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}

	database := Client.Database("tavoladb")
	MenuCollection = database.Collection("menu")
	OrdersCollection = database.Collection("orders")
	ReservationsCollection = database.Collection("reservations")
	ConversationsCollection = database.Collection("conversations")
	AdminsCollection = database.Collection("admins")
	ConfirmTasksCollection = database.Collection("confirm_tasks")
}

// EnsureIndexes creates the unique and lookup indexes the stores rely on.
func EnsureIndexes(ctx context.Context) error {
	_, err := ConversationsCollection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.M{"customerid": 1},
		Options: options.Index().SetUnique(true).SetName("unique_customer"),
	})
	if err != nil {
		return err
	}

	_, err = OrdersCollection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.M{"orderid": 1}, Options: options.Index().SetUnique(true).SetName("unique_order")},
		{Keys: bson.M{"paymentlinkid": 1}, Options: options.Index().SetName("by_payment_link")},
		{Keys: bson.M{"customerid": 1, "createdat": -1}, Options: options.Index().SetName("by_customer_recent")},
	})
	if err != nil {
		return err
	}

	// One pending auto-confirm task per order; Schedule upserts against this.
	_, err = ConfirmTasksCollection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.M{"orderid": 1},
		Options: options.Index().SetUnique(true).SetName("unique_task_order"),
	})
	return err
}

package store

import (
	"context"
	"errors"
	"time"

	"tavola/db"
	"tavola/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo-backed implementations over the shared collections in db.

type MongoConversations struct{}

func NewMongoConversations() *MongoConversations { return &MongoConversations{} }

func (s *MongoConversations) GetOrCreate(ctx context.Context, customerID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := db.ConversationsCollection.FindOne(ctx, bson.M{"customerid": customerID}).Decode(&conv)
	if err == nil {
		return &conv, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	conv = models.Conversation{
		CustomerID:     customerID,
		Step:           models.StepWelcome,
		LastActivityAt: time.Now(),
	}
	if _, err := db.ConversationsCollection.InsertOne(ctx, conv); err != nil {
		// Lost a race against a duplicate delivery; load the winner.
		if mongo.IsDuplicateKeyError(err) {
			if ferr := db.ConversationsCollection.FindOne(ctx, bson.M{"customerid": customerID}).Decode(&conv); ferr == nil {
				return &conv, nil
			}
		}
		return nil, err
	}
	return &conv, nil
}

func (s *MongoConversations) Save(ctx context.Context, conv *models.Conversation) error {
	_, err := db.ConversationsCollection.ReplaceOne(ctx,
		bson.M{"customerid": conv.CustomerID}, conv,
		options.Replace().SetUpsert(true))
	return err
}

type MongoCatalog struct{}

func NewMongoCatalog() *MongoCatalog { return &MongoCatalog{} }

func (s *MongoCatalog) Categories(ctx context.Context) ([]string, error) {
	raw, err := db.MenuCollection.Distinct(ctx, "category", bson.M{"isavailable": true})
	if err != nil {
		return nil, err
	}
	cats := make([]string, 0, len(raw))
	for _, v := range raw {
		if c, ok := v.(string); ok {
			cats = append(cats, c)
		}
	}
	return cats, nil
}

func (s *MongoCatalog) ItemsByCategory(ctx context.Context, category string, limit int64) ([]models.MenuItem, error) {
	cur, err := db.MenuCollection.Find(ctx,
		bson.M{"category": category, "isavailable": true},
		options.Find().SetLimit(limit).SetSort(bson.M{"name": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var items []models.MenuItem
	if err := cur.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *MongoCatalog) ItemByID(ctx context.Context, itemID string) (*models.MenuItem, error) {
	var item models.MenuItem
	err := db.MenuCollection.FindOne(ctx, bson.M{"itemid": itemID}).Decode(&item)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

type MongoOrders struct{}

func NewMongoOrders() *MongoOrders { return &MongoOrders{} }

func (s *MongoOrders) Insert(ctx context.Context, order *models.Order) error {
	_, err := db.OrdersCollection.InsertOne(ctx, order)
	return err
}

func (s *MongoOrders) SetPaymentLink(ctx context.Context, orderID, linkID string) error {
	// The provider reference is written once; an order that already carries
	// one keeps it.
	res, err := db.OrdersCollection.UpdateOne(ctx,
		bson.M{"orderid": orderID, "paymentlinkid": bson.M{"$in": bson.A{nil, ""}}},
		bson.M{"$set": bson.M{"paymentlinkid": linkID, "updatedat": time.Now()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return errors.New("order missing or payment link already set")
	}
	return nil
}

func (s *MongoOrders) findOne(ctx context.Context, filter bson.M) (*models.Order, error) {
	var order models.Order
	err := db.OrdersCollection.FindOne(ctx, filter).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *MongoOrders) ByID(ctx context.Context, orderID string) (*models.Order, error) {
	return s.findOne(ctx, bson.M{"orderid": orderID})
}

func (s *MongoOrders) ByPaymentLinkID(ctx context.Context, linkID string) (*models.Order, error) {
	return s.findOne(ctx, bson.M{"paymentlinkid": linkID})
}

func (s *MongoOrders) ByPaymentID(ctx context.Context, paymentID string) (*models.Order, error) {
	return s.findOne(ctx, bson.M{"paymentid": paymentID})
}

func (s *MongoOrders) RecentByCustomer(ctx context.Context, customerID string, limit int64) ([]models.Order, error) {
	cur, err := db.OrdersCollection.Find(ctx,
		bson.M{"customerid": customerID},
		options.Find().SetSort(bson.M{"createdat": -1}).SetLimit(limit))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var orders []models.Order
	if err := cur.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *MongoOrders) Recent(ctx context.Context, limit int64) ([]models.Order, error) {
	cur, err := db.OrdersCollection.Find(ctx, bson.M{},
		options.Find().SetSort(bson.M{"createdat": -1}).SetLimit(limit))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var orders []models.Order
	if err := cur.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *MongoOrders) LatestByCustomer(ctx context.Context, customerID string) (*models.Order, error) {
	var order models.Order
	err := db.OrdersCollection.FindOne(ctx,
		bson.M{"customerid": customerID},
		options.FindOne().SetSort(bson.M{"createdat": -1})).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *MongoOrders) MarkPaid(ctx context.Context, orderID, paymentID string, at time.Time) (bool, error) {
	res, err := db.OrdersCollection.UpdateOne(ctx,
		bson.M{"orderid": orderID, "paymentstatus": models.PaymentPending},
		bson.M{"$set": bson.M{
			"paymentstatus":     models.PaymentCompleted,
			"status":            models.OrderPaymentVerified,
			"paymentid":         paymentID,
			"paymentverifiedat": at,
			"updatedat":         at,
		}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (s *MongoOrders) ConfirmIfVerified(ctx context.Context, orderID string) (*models.Order, bool, error) {
	var order models.Order
	err := db.OrdersCollection.FindOneAndUpdate(ctx,
		bson.M{"orderid": orderID, "status": models.OrderPaymentVerified},
		bson.M{"$set": bson.M{"status": models.OrderConfirmed, "updatedat": time.Now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// Already advanced (or cancelled); the auto-confirm quietly stands down.
		latest, ferr := s.ByID(ctx, orderID)
		if ferr != nil {
			return nil, false, ferr
		}
		return latest, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &order, true, nil
}

func (s *MongoOrders) MarkFailed(ctx context.Context, orderID string) (*models.Order, bool, error) {
	var order models.Order
	err := db.OrdersCollection.FindOneAndUpdate(ctx,
		bson.M{
			"orderid":       orderID,
			"status":        bson.M{"$ne": models.OrderCancelled},
			"paymentstatus": bson.M{"$ne": models.PaymentCompleted},
		},
		bson.M{"$set": bson.M{
			"status":        models.OrderCancelled,
			"paymentstatus": models.PaymentFailed,
			"updatedat":     time.Now(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		latest, ferr := s.ByID(ctx, orderID)
		if ferr != nil {
			return nil, false, ferr
		}
		return latest, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &order, true, nil
}

func (s *MongoOrders) UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus) (*models.Order, error) {
	set := bson.M{"status": status, "updatedat": time.Now()}
	if status == models.OrderDelivered {
		set["deliveredat"] = time.Now()
	}
	var order models.Order
	err := db.OrdersCollection.FindOneAndUpdate(ctx,
		bson.M{"orderid": orderID},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

type MongoReservations struct{}

func NewMongoReservations() *MongoReservations { return &MongoReservations{} }

func (s *MongoReservations) Insert(ctx context.Context, res *models.Reservation) error {
	_, err := db.ReservationsCollection.InsertOne(ctx, res)
	return err
}

func (s *MongoReservations) ByID(ctx context.Context, reservationID string) (*models.Reservation, error) {
	var res models.Reservation
	err := db.ReservationsCollection.FindOne(ctx, bson.M{"reservationid": reservationID}).Decode(&res)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *MongoReservations) Recent(ctx context.Context, limit int64) ([]models.Reservation, error) {
	cur, err := db.ReservationsCollection.Find(ctx, bson.M{},
		options.Find().SetSort(bson.M{"createdat": -1}).SetLimit(limit))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Reservation
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoReservations) UpdateStatus(ctx context.Context, reservationID string, status models.ReservationStatus, tableNumber string) (*models.Reservation, error) {
	set := bson.M{"status": status, "updatedat": time.Now()}
	if tableNumber != "" {
		set["tablenumber"] = tableNumber
	}
	var res models.Reservation
	err := db.ReservationsCollection.FindOneAndUpdate(ctx,
		bson.M{"reservationid": reservationID},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&res)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

type MongoTasks struct{}

func NewMongoTasks() *MongoTasks { return &MongoTasks{} }

func (s *MongoTasks) Schedule(ctx context.Context, orderID string, runAt time.Time) error {
	_, err := db.ConfirmTasksCollection.UpdateOne(ctx,
		bson.M{"orderid": orderID},
		bson.M{
			"$set":         bson.M{"runat": runAt},
			"$setOnInsert": bson.M{"orderid": orderID, "createdat": time.Now()},
		},
		options.Update().SetUpsert(true))
	return err
}

func (s *MongoTasks) Due(ctx context.Context, now time.Time) ([]models.ConfirmTask, error) {
	cur, err := db.ConfirmTasksCollection.Find(ctx, bson.M{"runat": bson.M{"$lte": now}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var tasks []models.ConfirmTask
	if err := cur.All(ctx, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *MongoTasks) Delete(ctx context.Context, orderID string) error {
	_, err := db.ConfirmTasksCollection.DeleteOne(ctx, bson.M{"orderid": orderID})
	return err
}

type MongoAdmins struct{}

func NewMongoAdmins() *MongoAdmins { return &MongoAdmins{} }

func (s *MongoAdmins) ByUsername(ctx context.Context, username string) (*models.AdminUser, error) {
	var u models.AdminUser
	err := db.AdminsCollection.FindOne(ctx, bson.M{"username": username}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

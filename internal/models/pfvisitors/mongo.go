package pfvisitors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoLedger implémente Ledger sur une collection MongoDB, un document par IP
type MongoLedger struct {
	client     *mongo.Client
	database   string
	collection string
}

// ConnectMongo ouvre le client partagé pour toute la durée du processus
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("error connecting to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("error pinging mongodb: %w", err)
	}
	return client, nil
}

func NewMongoLedger(client *mongo.Client, database, collection string) *MongoLedger {
	return &MongoLedger{
		client:     client,
		database:   database,
		collection: collection,
	}
}

func (l *MongoLedger) coll() *mongo.Collection {
	return l.client.Database(l.database).Collection(l.collection)
}

// Ensure crée l'index unique sur ip_address
func (l *MongoLedger) Ensure(ctx context.Context) error {
	_, err := l.coll().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "ip_address", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("ip_address_unique"),
	})
	if err != nil {
		return fmt.Errorf("error creating visitor index: %w", err)
	}
	return nil
}

func (l *MongoLedger) Find(ctx context.Context, ip string) (*Visitor, error) {
	var visitor Visitor
	err := l.coll().FindOne(ctx, bson.M{"ip_address": ip}).Decode(&visitor)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error finding visitor: %w", err)
	}
	return &visitor, nil
}

func (l *MongoLedger) Insert(ctx context.Context, ip string, geo Geo, at time.Time) error {
	_, err := l.coll().InsertOne(ctx, newVisitor(ip, geo, at))
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("error inserting visitor: %w", err)
	}
	return nil
}

func (l *MongoLedger) Touch(ctx context.Context, ip string, at time.Time) error {
	update := bson.M{
		"$set": bson.M{"last_visit": at},
		"$inc": bson.M{"visit_count": 1},
	}
	result, err := l.coll().UpdateOne(ctx, bson.M{"ip_address": ip}, update)
	if err != nil {
		return fmt.Errorf("error updating visitor: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (l *MongoLedger) Close() error {
	return l.client.Disconnect(context.Background())
}

package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoOpTimeout = 5 * time.Second

type itemDoc struct {
	SupplierID string  `bson:"supplier_id"`
	Name       string  `bson:"name"`
	Qty        int     `bson:"qty"`
	Unit       string  `bson:"unit,omitempty"`
	UnitPrice  float64 `bson:"unit_price,omitempty"`
}

// MongoStore persists the ledger in MongoDB: one suppliers collection
// keyed by supplier id and one items collection keyed by
// (supplier_id, name). Multi-line deductions run inside a session
// transaction so the all-or-nothing contract holds.
type MongoStore struct {
	client    *mongo.Client
	suppliers *mongo.Collection
	items     *mongo.Collection
}

func NewMongoStore(client *mongo.Client, dbName string) *MongoStore {
	db := client.Database(dbName)
	return &MongoStore{
		client:    client,
		suppliers: db.Collection("suppliers"),
		items:     db.Collection("items"),
	}
}

func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.items.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "supplier_id", Value: 1}, {Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (s *MongoStore) EnsureSupplier(ctx context.Context, cfg SupplierConfig) error {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()
	_, err := s.suppliers.UpdateOne(ctx,
		bson.M{"_id": cfg.SupplierID},
		bson.M{"$setOnInsert": cfg},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *MongoStore) Supplier(ctx context.Context, supplierID string) (SupplierConfig, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()
	var cfg SupplierConfig
	err := s.suppliers.FindOne(ctx, bson.M{"_id": supplierID}).Decode(&cfg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return SupplierConfig{}, ErrUnknownSupplier
	}
	return cfg, err
}

func (s *MongoStore) Inventory(ctx context.Context, supplierID string) ([]Line, error) {
	if _, err := s.Supplier(ctx, supplierID); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	cur, err := s.items.Find(ctx, bson.M{"supplier_id": supplierID},
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []Line
	for cur.Next(ctx) {
		var d itemDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, Line{Name: d.Name, Qty: d.Qty, Unit: d.Unit, UnitPrice: d.UnitPrice})
	}
	return out, cur.Err()
}

func (s *MongoStore) OfferFor(ctx context.Context, supplierID string, requested []Line) ([]Line, float64, error) {
	inv, err := s.Inventory(ctx, supplierID)
	if err != nil {
		return nil, 0, err
	}
	stock := make(map[string]Line, len(inv))
	for _, it := range inv {
		stock[ItemKey(it.Name)] = it
	}

	offered := make([]Line, 0, len(requested))
	for _, r := range requested {
		it := stock[ItemKey(r.Name)]
		offer := r.Qty
		if it.Qty < offer {
			offer = it.Qty
		}
		if offer < 0 {
			offer = 0
		}
		offered = append(offered, Line{Name: r.Name, Qty: offer, Unit: it.Unit, UnitPrice: it.UnitPrice})
	}
	return offered, coverage(requested, offered), nil
}

func (s *MongoStore) Deduct(ctx context.Context, supplierID string, lines []Line) ([]Line, error) {
	if _, err := s.Supplier(ctx, supplierID); err != nil {
		return nil, err
	}

	sess, err := s.client.StartSession()
	if err != nil {
		return nil, err
	}
	defer sess.EndSession(ctx)

	res, err := sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		applied := make([]Line, 0, len(lines))
		for _, l := range lines {
			if l.Qty <= 0 {
				continue
			}
			key := ItemKey(l.Name)
			var d itemDoc
			err := s.items.FindOne(sc, bson.M{"supplier_id": supplierID, "name": key}).Decode(&d)
			if errors.Is(err, mongo.ErrNoDocuments) {
				continue
			}
			if err != nil {
				return nil, err
			}
			take := l.Qty
			if take > d.Qty {
				slog.Warn("deduction clamped to available stock",
					"supplier_id", supplierID,
					"item", key,
					"requested", l.Qty,
					"available", d.Qty,
				)
				take = d.Qty
			}
			if _, err := s.items.UpdateOne(sc,
				bson.M{"supplier_id": supplierID, "name": key},
				bson.M{"$inc": bson.M{"qty": -take}},
			); err != nil {
				return nil, err
			}
			applied = append(applied, Line{Name: key, Qty: take, Unit: d.Unit, UnitPrice: d.UnitPrice})
		}
		return applied, nil
	})
	if err != nil {
		return nil, err
	}
	return res.([]Line), nil
}

func (s *MongoStore) Restock(ctx context.Context, supplierID string, lines []Line) ([]Line, error) {
	for _, l := range lines {
		if l.Qty < 0 {
			return nil, ErrNegativeQty
		}
	}
	return s.apply(ctx, supplierID, lines)
}

func (s *MongoStore) Adjust(ctx context.Context, supplierID string, lines []Line) ([]Line, error) {
	return s.apply(ctx, supplierID, lines)
}

func (s *MongoStore) apply(ctx context.Context, supplierID string, lines []Line) ([]Line, error) {
	if _, err := s.Supplier(ctx, supplierID); err != nil {
		return nil, err
	}

	sess, err := s.client.StartSession()
	if err != nil {
		return nil, err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		for _, l := range lines {
			key := ItemKey(l.Name)
			if key == "" {
				continue
			}
			set := bson.M{}
			if l.Unit != "" {
				set["unit"] = l.Unit
			}
			if l.UnitPrice != 0 {
				set["unit_price"] = l.UnitPrice
			}
			update := bson.M{"$inc": bson.M{"qty": l.Qty}}
			if len(set) > 0 {
				update["$set"] = set
			}
			if _, err := s.items.UpdateOne(sc,
				bson.M{"supplier_id": supplierID, "name": key},
				update,
				options.Update().SetUpsert(true),
			); err != nil {
				return nil, err
			}
			// floor at zero after a negative adjustment
			if l.Qty < 0 {
				if _, err := s.items.UpdateOne(sc,
					bson.M{"supplier_id": supplierID, "name": key, "qty": bson.M{"$lt": 0}},
					bson.M{"$set": bson.M{"qty": 0}},
				); err != nil {
					return nil, err
				}
			}
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return s.Inventory(ctx, supplierID)
}

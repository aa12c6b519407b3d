package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"organlink/internal/domain"
	"organlink/pkg/platform/sentinel"
)

// Collection names in the backing database.
const (
	CollectionDonors     = "donors"
	CollectionRecipients = "recipients"
	CollectionMatches    = "matches"
	CollectionLedgers    = "ledgers"
)

// NewMongoStores wires all four collections against one database.
func NewMongoStores(db *mongo.Database) *Stores {
	return &Stores{
		Donors:     &MongoDonorStore{col: db.Collection(CollectionDonors)},
		Recipients: &MongoRecipientStore{col: db.Collection(CollectionRecipients)},
		Matches:    &MongoMatchStore{col: db.Collection(CollectionMatches)},
		Ledgers:    &MongoLedgerStore{col: db.Collection(CollectionLedgers)},
	}
}

// EnsureMongoIndexes creates the unique block-id index backing the ledger
// append-only contract. Idempotent.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	// Partial: legacy records may carry no block id, and those must not
	// collide with each other.
	_, err := db.Collection(CollectionLedgers).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "blockId", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"blockId": bson.M{"$gt": ""}}),
	})
	if err != nil {
		return fmt.Errorf("create ledger block index: %w", err)
	}
	return nil
}

func parseObjectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, sentinel.ErrMalformedID
	}
	return oid, nil
}

// Timestamps persist as ISO-8601 UTC strings with a trailing Z, which keeps
// lexical and chronological order identical for sorting.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

type donorDoc struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	FullName      string             `bson:"fullName"`
	Age           int                `bson:"age"`
	Gender        string             `bson:"gender"`
	BloodGroup    string             `bson:"bloodGroup"`
	OrganType     string             `bson:"organType"`
	City          string             `bson:"city"`
	State         string             `bson:"state"`
	ContactNumber string             `bson:"contactNumber"`
	Email         string             `bson:"email"`
	HealthHistory string             `bson:"healthHistory,omitempty"`
	Consent       bool               `bson:"consent"`
	Consumed      bool               `bson:"consumed"`
	RegisteredAt  string             `bson:"registeredAt"`
}

func (d donorDoc) toDomain() *domain.Donor {
	return &domain.Donor{
		ID:            d.ID.Hex(),
		FullName:      d.FullName,
		Age:           d.Age,
		Gender:        d.Gender,
		BloodGroup:    domain.BloodGroup(d.BloodGroup),
		OrganType:     d.OrganType,
		City:          d.City,
		State:         d.State,
		ContactNumber: d.ContactNumber,
		Email:         d.Email,
		HealthHistory: d.HealthHistory,
		Consent:       d.Consent,
		Consumed:      d.Consumed,
		RegisteredAt:  parseTime(d.RegisteredAt),
	}
}

// MongoDonorStore persists donors in the donors collection.
type MongoDonorStore struct {
	col *mongo.Collection
}

func (s *MongoDonorStore) Insert(ctx context.Context, donor *domain.Donor) (string, error) {
	doc := donorDoc{
		FullName:      donor.FullName,
		Age:           donor.Age,
		Gender:        donor.Gender,
		BloodGroup:    string(donor.BloodGroup),
		OrganType:     donor.OrganType,
		City:          donor.City,
		State:         donor.State,
		ContactNumber: donor.ContactNumber,
		Email:         donor.Email,
		HealthHistory: donor.HealthHistory,
		Consent:       donor.Consent,
		Consumed:      donor.Consumed,
		RegisteredAt:  formatTime(donor.RegisteredAt),
	}
	res, err := s.col.InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("insert donor: %w", err)
	}
	return res.InsertedID.(primitive.ObjectID).Hex(), nil
}

func (s *MongoDonorStore) FindByID(ctx context.Context, id string) (*domain.Donor, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}
	var doc donorDoc
	if err := s.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find donor: %w", err)
	}
	return doc.toDomain(), nil
}

func (s *MongoDonorStore) List(ctx context.Context) ([]*domain.Donor, error) {
	return s.find(ctx, bson.M{}, -1)
}

func (s *MongoDonorStore) ListEligible(ctx context.Context) ([]*domain.Donor, error) {
	return s.find(ctx, bson.M{"consumed": false, "consent": true}, 1)
}

func (s *MongoDonorStore) find(ctx context.Context, filter bson.M, order int) ([]*domain.Donor, error) {
	cur, err := s.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "registeredAt", Value: order}}))
	if err != nil {
		return nil, fmt.Errorf("find donors: %w", err)
	}
	defer cur.Close(ctx)
	var out []*domain.Donor
	for cur.Next(ctx) {
		var doc donorDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode donor: %w", err)
		}
		out = append(out, doc.toDomain())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate donors: %w", err)
	}
	return out, nil
}

func (s *MongoDonorStore) Claim(ctx context.Context, id string) error {
	return claim(ctx, s.col, id)
}

func (s *MongoDonorStore) ResetConsumed(ctx context.Context) error {
	_, err := s.col.UpdateMany(ctx, bson.M{}, bson.M{"$set": bson.M{"consumed": false}})
	if err != nil {
		return fmt.Errorf("reset donors: %w", err)
	}
	return nil
}

func (s *MongoDonorStore) DeleteAll(ctx context.Context) error {
	if _, err := s.col.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("delete donors: %w", err)
	}
	return nil
}

// claim performs the compare-and-set consumed transition as a single
// conditional update, not a read-modify-write pair.
func claim(ctx context.Context, col *mongo.Collection, id string) error {
	oid, err := parseObjectID(id)
	if err != nil {
		return err
	}
	res := col.FindOneAndUpdate(ctx,
		bson.M{"_id": oid, "consumed": false},
		bson.M{"$set": bson.M{"consumed": true}},
	)
	if err := res.Err(); err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return fmt.Errorf("claim record: %w", err)
		}
		// Either the record is gone or another cycle claimed it first.
		n, countErr := col.CountDocuments(ctx, bson.M{"_id": oid})
		if countErr != nil {
			return fmt.Errorf("claim record: %w", countErr)
		}
		if n == 0 {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	return nil
}

type recipientDoc struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	Name           string             `bson:"name"`
	Email          string             `bson:"email"`
	Organ          string             `bson:"organ"`
	BloodGroup     string             `bson:"bloodGroup"`
	MedicalHistory string             `bson:"medicalHistory,omitempty"`
	Consumed       bool               `bson:"consumed"`
	RegisteredAt   string             `bson:"registeredAt"`
}

func (d recipientDoc) toDomain() *domain.Recipient {
	return &domain.Recipient{
		ID:             d.ID.Hex(),
		Name:           d.Name,
		Email:          d.Email,
		Organ:          d.Organ,
		BloodGroup:     domain.BloodGroup(d.BloodGroup),
		MedicalHistory: d.MedicalHistory,
		Consumed:       d.Consumed,
		RegisteredAt:   parseTime(d.RegisteredAt),
	}
}

// MongoRecipientStore persists recipients in the recipients collection.
type MongoRecipientStore struct {
	col *mongo.Collection
}

func (s *MongoRecipientStore) Insert(ctx context.Context, recipient *domain.Recipient) (string, error) {
	doc := recipientDoc{
		Name:           recipient.Name,
		Email:          recipient.Email,
		Organ:          recipient.Organ,
		BloodGroup:     string(recipient.BloodGroup),
		MedicalHistory: recipient.MedicalHistory,
		Consumed:       recipient.Consumed,
		RegisteredAt:   formatTime(recipient.RegisteredAt),
	}
	res, err := s.col.InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("insert recipient: %w", err)
	}
	return res.InsertedID.(primitive.ObjectID).Hex(), nil
}

func (s *MongoRecipientStore) FindByID(ctx context.Context, id string) (*domain.Recipient, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}
	var doc recipientDoc
	if err := s.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find recipient: %w", err)
	}
	return doc.toDomain(), nil
}

func (s *MongoRecipientStore) List(ctx context.Context) ([]*domain.Recipient, error) {
	return s.find(ctx, bson.M{}, -1)
}

func (s *MongoRecipientStore) ListEligible(ctx context.Context) ([]*domain.Recipient, error) {
	return s.find(ctx, bson.M{"consumed": false}, 1)
}

func (s *MongoRecipientStore) find(ctx context.Context, filter bson.M, order int) ([]*domain.Recipient, error) {
	cur, err := s.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "registeredAt", Value: order}}))
	if err != nil {
		return nil, fmt.Errorf("find recipients: %w", err)
	}
	defer cur.Close(ctx)
	var out []*domain.Recipient
	for cur.Next(ctx) {
		var doc recipientDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode recipient: %w", err)
		}
		out = append(out, doc.toDomain())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate recipients: %w", err)
	}
	return out, nil
}

func (s *MongoRecipientStore) Claim(ctx context.Context, id string) error {
	return claim(ctx, s.col, id)
}

func (s *MongoRecipientStore) ResetConsumed(ctx context.Context) error {
	_, err := s.col.UpdateMany(ctx, bson.M{}, bson.M{"$set": bson.M{"consumed": false}})
	if err != nil {
		return fmt.Errorf("reset recipients: %w", err)
	}
	return nil
}

func (s *MongoRecipientStore) DeleteAll(ctx context.Context) error {
	if _, err := s.col.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("delete recipients: %w", err)
	}
	return nil
}

type matchDoc struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	DonorID       string             `bson:"donorId"`
	RecipientID   string             `bson:"recipientId"`
	Organ         string             `bson:"organ"`
	Compatibility int                `bson:"compatibility"`
	Status        string             `bson:"status"`
	Source        string             `bson:"source"`
	CreatedAt     string             `bson:"createdAt"`
}

// MongoMatchStore persists matches in the matches collection.
type MongoMatchStore struct {
	col *mongo.Collection
}

func (s *MongoMatchStore) Insert(ctx context.Context, match *domain.Match) (string, error) {
	doc := matchDoc{
		DonorID:       match.DonorID,
		RecipientID:   match.RecipientID,
		Organ:         match.Organ,
		Compatibility: match.Compatibility,
		Status:        string(match.Status),
		Source:        string(match.Source),
		CreatedAt:     formatTime(match.CreatedAt),
	}
	res, err := s.col.InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("insert match: %w", err)
	}
	return res.InsertedID.(primitive.ObjectID).Hex(), nil
}

func (s *MongoMatchStore) List(ctx context.Context) ([]*domain.Match, error) {
	cur, err := s.col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("find matches: %w", err)
	}
	defer cur.Close(ctx)
	var out []*domain.Match
	for cur.Next(ctx) {
		var doc matchDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode match: %w", err)
		}
		out = append(out, &domain.Match{
			ID:            doc.ID.Hex(),
			DonorID:       doc.DonorID,
			RecipientID:   doc.RecipientID,
			Organ:         doc.Organ,
			Compatibility: doc.Compatibility,
			Status:        domain.MatchStatus(doc.Status),
			Source:        domain.MatchSource(doc.Source),
			CreatedAt:     parseTime(doc.CreatedAt),
		})
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return out, nil
}

func (s *MongoMatchStore) DeleteAll(ctx context.Context) error {
	if _, err := s.col.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("delete matches: %w", err)
	}
	return nil
}

type ledgerDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	BlockID     string             `bson:"blockId"`
	DonorID     string             `bson:"donorId"`
	RecipientID string             `bson:"recipientId"`
	Organ       string             `bson:"organ"`
	Status      string             `bson:"status"`
	Meta        map[string]string  `bson:"meta,omitempty"`
	Timestamp   string             `bson:"timestamp"`
}

// MongoLedgerStore persists the local ledger; the unique blockId index turns
// duplicate block ids into sentinel.ErrConflict.
type MongoLedgerStore struct {
	col *mongo.Collection
}

func (s *MongoLedgerStore) Append(ctx context.Context, record *domain.LedgerRecord) (string, error) {
	doc := ledgerDoc{
		BlockID:     record.BlockID,
		DonorID:     record.DonorID,
		RecipientID: record.RecipientID,
		Organ:       record.Organ,
		Status:      string(record.Status),
		Meta:        record.Meta,
		Timestamp:   formatTime(record.Timestamp),
	}
	res, err := s.col.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", sentinel.ErrConflict
		}
		return "", fmt.Errorf("append ledger record: %w", err)
	}
	return res.InsertedID.(primitive.ObjectID).Hex(), nil
}

func (s *MongoLedgerStore) List(ctx context.Context) ([]*domain.LedgerRecord, error) {
	cur, err := s.col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("find ledger records: %w", err)
	}
	defer cur.Close(ctx)
	var out []*domain.LedgerRecord
	for cur.Next(ctx) {
		var doc ledgerDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode ledger record: %w", err)
		}
		out = append(out, &domain.LedgerRecord{
			ID:          doc.ID.Hex(),
			BlockID:     doc.BlockID,
			DonorID:     doc.DonorID,
			RecipientID: doc.RecipientID,
			Organ:       doc.Organ,
			Status:      domain.MatchStatus(doc.Status),
			Meta:        doc.Meta,
			Timestamp:   parseTime(doc.Timestamp),
		})
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger records: %w", err)
	}
	return out, nil
}

func (s *MongoLedgerStore) DeleteAll(ctx context.Context) error {
	if _, err := s.col.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("delete ledger records: %w", err)
	}
	return nil
}

package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/unclebandit/lead-ingest/internal/model"
)

// leadDocument is the stored form: document fields in order, then the
// natural key and the update time. createdAt is managed separately.
func leadDocument(l *model.Lead, naturalKey string, now time.Time) bson.D {
	fields := l.Document()
	doc := make(bson.D, 0, len(fields)+2)
	for _, f := range fields {
		v := f.Value
		if f.Name == model.FieldCampaignID {
			v = campaignKey(l.CampaignID)
		}
		doc = append(doc, bson.E{Key: f.Name, Value: v})
	}
	return append(doc,
		bson.E{Key: naturalKeyField, Value: naturalKey},
		bson.E{Key: model.FieldUpdatedAt, Value: now},
	)
}

// leadFromBSON rebuilds a lead from a stored document.
func leadFromBSON(d bson.D) (*model.Lead, error) {
	fields := make(model.Fields, 0, len(d))
	meta := map[string]any{}
	for _, e := range d {
		switch e.Key {
		case "_id", model.FieldCampaign, model.FieldCampaignID, model.FieldOrganization, model.FieldUploader,
			model.FieldCreatedAt, model.FieldUpdatedAt, naturalKeyField:
			meta[e.Key] = e.Value
			continue
		}
		fields = append(fields, model.Field{Name: e.Key, Value: plain(e.Value)})
	}
	l, err := model.LeadFromFields(fields)
	if err != nil {
		return nil, fmt.Errorf("decode stored lead: %w", err)
	}
	l.ID = idString(meta["_id"])
	l.Campaign, _ = meta[model.FieldCampaign].(string)
	l.CampaignID = idString(meta[model.FieldCampaignID])
	l.Organization, _ = meta[model.FieldOrganization].(string)
	l.Uploader, _ = meta[model.FieldUploader].(string)
	if t, ok := meta[model.FieldCreatedAt].(primitive.DateTime); ok {
		l.CreatedAt = t.Time().UTC()
	}
	if t, ok := meta[model.FieldUpdatedAt].(primitive.DateTime); ok {
		l.UpdatedAt = t.Time().UTC()
	}
	return l, nil
}

// plain converts driver types back to the values the decoder produces.
func plain(v any) any {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.A:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = plain(item)
		}
		return out
	case int32:
		return int64(t)
	case primitive.ObjectID:
		return t.Hex()
	}
	return v
}

// UpsertByFilter is a single FindOneAndReplace with upsert. It returns the
// document as it was before the write, so ErrNoDocuments means an insert.
// Identity and createdAt are read back afterwards; they do not take part in
// the classification.
func (s *Store) UpsertByFilter(ctx context.Context, filter model.LeadFilter, lead *model.Lead) (*model.UpsertResult, error) {
	key, err := filter.NaturalKey()
	if err != nil {
		return nil, err
	}
	coll := s.DB.Collection(leadsColl)
	now := time.Now().UTC()
	q := bson.D{{Key: model.FieldCampaignID, Value: campaignKey(filter.CampaignID)}, {Key: naturalKeyField, Value: key}}

	var before bson.D
	err = coll.FindOneAndReplace(ctx, q, leadDocument(lead, key, now),
		options.FindOneAndReplace().SetUpsert(true).SetReturnDocument(options.Before),
	).Decode(&before)

	res := &model.UpsertResult{}
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		res.Inserted = true
	case err != nil:
		return nil, fmt.Errorf("upsert lead: %w", err)
	default:
		res.Existed = true
		if res.Previous, err = leadFromBSON(before); err != nil {
			return nil, err
		}
	}

	created := now
	if res.Previous != nil && !res.Previous.CreatedAt.IsZero() {
		created = res.Previous.CreatedAt
	}
	var cur struct {
		ID        any       `bson:"_id"`
		CreatedAt time.Time `bson:"createdAt"`
	}
	missing := append(bson.D{}, q...)
	missing = append(missing, bson.E{Key: model.FieldCreatedAt, Value: bson.M{"$exists": false}})
	err = coll.FindOneAndUpdate(ctx, missing,
		bson.M{"$set": bson.M{model.FieldCreatedAt: created}},
		options.FindOneAndUpdate().SetReturnDocument(options.After).SetProjection(bson.M{"_id": 1, "createdAt": 1}),
	).Decode(&cur)
	if errors.Is(err, mongo.ErrNoDocuments) {
		err = coll.FindOne(ctx, q, options.FindOne().SetProjection(bson.M{"_id": 1, "createdAt": 1})).Decode(&cur)
	}
	if err != nil {
		return nil, fmt.Errorf("read back lead: %w", err)
	}

	stored := *lead
	stored.ID = idString(cur.ID)
	stored.CreatedAt = cur.CreatedAt.UTC()
	stored.UpdatedAt = now
	res.Lead = &stored
	return res, nil
}

func (s *Store) CountByCampaign(ctx context.Context, campaignID string) (int, error) {
	n, err := s.DB.Collection(leadsColl).CountDocuments(ctx, bson.M{model.FieldCampaignID: campaignKey(campaignID)})
	return int(n), err
}

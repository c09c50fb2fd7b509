// Package mongostore implements the campaign, lead and audit stores on MongoDB.
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

	appErrors "github.com/unclebandit/lead-ingest/internal/errors"
	"github.com/unclebandit/lead-ingest/internal/model"
)

const (
	campaignsColl   = "campaigns"
	configsColl     = "campaignconfigs"
	leadsColl       = "leads"
	adminActionColl = "adminactions"

	naturalKeyField = "naturalKey"
)

type Store struct {
	Client *mongo.Client
	DB     *mongo.Database
}

func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &Store{Client: client, DB: client.Database(database)}, nil
}

func (s *Store) Close(ctx context.Context) error { return s.Client.Disconnect(ctx) }

// EnsureIndexes creates the unique natural key index the upsert relies on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.DB.Collection(leadsColl).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "campaignId", Value: 1}, {Key: naturalKeyField, Value: 1}},
		Options: options.Index().SetUnique(true).SetName("campaign_natural_key"),
	})
	if err != nil {
		return fmt.Errorf("create lead index: %w", err)
	}
	_, err = s.DB.Collection(configsColl).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "campaignId", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create config index: %w", err)
	}
	_, err = s.DB.Collection(adminActionColl).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "campaign", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "campaign", Value: 1}, {Key: "jobId", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create audit index: %w", err)
	}
	return nil
}

// campaignKey stores campaign ids as ObjectIDs when they look like one.
func campaignKey(id string) any {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid
	}
	return id
}

func idString(v any) string {
	switch t := v.(type) {
	case primitive.ObjectID:
		return t.Hex()
	case string:
		return t
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

func (s *Store) GetUniqueColumns(ctx context.Context, campaignID string) ([]string, error) {
	var c struct {
		UniqueCols []string `bson:"uniqueCols"`
	}
	err := s.DB.Collection(campaignsColl).FindOne(ctx,
		bson.M{"_id": campaignKey(campaignID)},
		options.FindOne().SetProjection(bson.M{"uniqueCols": 1}),
	).Decode(&c)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, appErrors.NewCampaignNotFound(campaignID)
		}
		return nil, err
	}
	return c.UniqueCols, nil
}

func (s *Store) GetFieldMapping(ctx context.Context, campaignID string) ([]model.FieldMapping, error) {
	cur, err := s.DB.Collection(configsColl).Find(ctx,
		bson.M{"campaignId": campaignKey(campaignID)},
		options.Find().SetProjection(bson.M{"readableField": 1, "internalField": 1, "_id": 0}),
	)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		ReadableField string `bson:"readableField"`
		InternalField string `bson:"internalField"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, appErrors.NewConfigNotFound(campaignID)
	}
	mappings := make([]model.FieldMapping, len(rows))
	for i, r := range rows {
		mappings[i] = model.FieldMapping{CampaignID: campaignID, ReadableField: r.ReadableField, InternalField: r.InternalField}
	}
	return mappings, nil
}

func (s *Store) SaveCampaign(ctx context.Context, c *model.Campaign, mappings []model.FieldMapping) error {
	now := time.Now().UTC()
	key := campaignKey(c.ID)
	_, err := s.DB.Collection(campaignsColl).UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{
			"$set": bson.M{
				"name":         c.Name,
				"organization": c.Organization,
				"uniqueCols":   c.UniqueCols,
				"updatedAt":    now,
			},
			"$setOnInsert": bson.M{"createdAt": now},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("save campaign %s: %w", c.ID, err)
	}

	configs := s.DB.Collection(configsColl)
	if _, err := configs.DeleteMany(ctx, bson.M{"campaignId": key}); err != nil {
		return err
	}
	if len(mappings) == 0 {
		return nil
	}
	docs := make([]any, len(mappings))
	for i, m := range mappings {
		docs[i] = bson.D{
			{Key: "campaignId", Value: key},
			{Key: "readableField", Value: m.ReadableField},
			{Key: "internalField", Value: m.InternalField},
		}
	}
	_, err = configs.InsertMany(ctx, docs)
	return err
}

func (s *Store) Append(ctx context.Context, a *model.AdminAction) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	doc := bson.D{
		{Key: "userid", Value: a.UserID},
		{Key: "organization", Value: a.Organization},
		{Key: "actionType", Value: a.ActionType},
		{Key: "filePath", Value: a.FilePath},
		{Key: "savedOn", Value: a.SavedOn},
		{Key: "campaign", Value: campaignKey(a.Campaign)},
		{Key: "fileType", Value: a.FileType},
		{Key: "created", Value: a.Created},
		{Key: "updated", Value: a.Updated},
		{Key: "errored", Value: a.Errored},
		{Key: "errorsPath", Value: a.ErrorsPath},
		{Key: "jobId", Value: a.JobID},
		{Key: "fileIndex", Value: a.FileIndex},
		{Key: "error", Value: a.Error},
		{Key: "createdAt", Value: a.CreatedAt},
	}
	if a.ID != "" {
		doc = append(bson.D{{Key: "_id", Value: a.ID}}, doc...)
	}
	res, err := s.DB.Collection(adminActionColl).InsertOne(ctx, doc)
	if err != nil {
		return err
	}
	a.ID = idString(res.InsertedID)
	return nil
}

func (s *Store) ListByCampaign(ctx context.Context, campaignID string, limit int) ([]*model.AdminAction, error) {
	cur, err := s.DB.Collection(adminActionColl).Find(ctx,
		bson.M{"campaign": campaignKey(campaignID)},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, err
	}
	return decodeAdminActions(ctx, cur)
}

// ListByJob returns every entry written for one upload job, oldest first.
func (s *Store) ListByJob(ctx context.Context, campaignID, jobID string) ([]*model.AdminAction, error) {
	cur, err := s.DB.Collection(adminActionColl).Find(ctx,
		bson.M{"campaign": campaignKey(campaignID), "jobId": jobID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	return decodeAdminActions(ctx, cur)
}

func decodeAdminActions(ctx context.Context, cur *mongo.Cursor) ([]*model.AdminAction, error) {
	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*model.AdminAction, len(docs))
	for i, d := range docs {
		out[i] = adminActionFromBSON(d)
	}
	return out, nil
}

func adminActionFromBSON(d bson.M) *model.AdminAction {
	str := func(k string) string { s, _ := d[k].(string); return s }
	num := func(k string) int {
		switch n := d[k].(type) {
		case int32:
			return int(n)
		case int64:
			return int(n)
		}
		return 0
	}
	a := &model.AdminAction{
		ID:           idString(d["_id"]),
		UserID:       str("userid"),
		Organization: str("organization"),
		ActionType:   str("actionType"),
		FilePath:     str("filePath"),
		SavedOn:      str("savedOn"),
		Campaign:     idString(d["campaign"]),
		FileType:     str("fileType"),
		Created:      num("created"),
		Updated:      num("updated"),
		Errored:      num("errored"),
		ErrorsPath:   str("errorsPath"),
		JobID:        str("jobId"),
		FileIndex:    num("fileIndex"),
		Error:        str("error"),
	}
	if t, ok := d["createdAt"].(primitive.DateTime); ok {
		a.CreatedAt = t.Time().UTC()
	}
	return a
}

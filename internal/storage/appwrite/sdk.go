package appwrite

import (
	"fmt"

	sdk "github.com/appwrite/sdk-for-go/appwrite"
	"github.com/appwrite/sdk-for-go/client"
	"github.com/appwrite/sdk-for-go/databases"
)

// sdkDatabases — databaseAPI поверх сервиса Databases из SDK.
type sdkDatabases struct {
	srv *databases.Databases
}

func newSDKDatabases(cfg Config) *sdkDatabases {
	setters := []client.ClientOption{
		sdk.WithEndpoint(cfg.Endpoint),
		sdk.WithProject(cfg.ProjectID),
	}
	if cfg.APIKey != "" {
		setters = append(setters, sdk.WithKey(cfg.APIKey))
	}
	return &sdkDatabases{srv: sdk.NewDatabases(sdk.NewClient(setters...))}
}

// documentList — тело ответа listDocuments. Decode у SDK работает только на
// модели верхнего уровня, поэтому список разбирается целиком.
type documentList struct {
	Total     int           `json:"total"`
	Documents []rawDocument `json:"documents"`
}

// decoder — модели SDK, хранящие исходный JSON ответа.
type decoder interface {
	Decode(value interface{}) error
}

func decodeRaw(model decoder) (rawDocument, error) {
	var raw rawDocument
	if err := model.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode appwrite document: %w", err)
	}
	return raw, nil
}

func (s *sdkDatabases) listDocuments(databaseID, collectionID string, queries []string) ([]rawDocument, error) {
	resp, err := s.srv.ListDocuments(databaseID, collectionID, s.srv.WithListDocumentsQueries(queries))
	if err != nil {
		return nil, err
	}
	var list documentList
	if err := resp.Decode(&list); err != nil {
		return nil, fmt.Errorf("decode appwrite document list: %w", err)
	}
	return list.Documents, nil
}

func (s *sdkDatabases) getDocument(databaseID, collectionID, documentID string) (rawDocument, error) {
	resp, err := s.srv.GetDocument(databaseID, collectionID, documentID)
	if err != nil {
		return nil, err
	}
	return decodeRaw(resp)
}

func (s *sdkDatabases) createDocument(databaseID, collectionID, documentID string, data map[string]any) (rawDocument, error) {
	resp, err := s.srv.CreateDocument(databaseID, collectionID, documentID, data)
	if err != nil {
		return nil, err
	}
	return decodeRaw(resp)
}

func (s *sdkDatabases) updateDocument(databaseID, collectionID, documentID string, data map[string]any) (rawDocument, error) {
	resp, err := s.srv.UpdateDocument(databaseID, collectionID, documentID, s.srv.WithUpdateDocumentData(data))
	if err != nil {
		return nil, err
	}
	return decodeRaw(resp)
}

func (s *sdkDatabases) deleteDocument(databaseID, collectionID, documentID string) error {
	_, err := s.srv.DeleteDocument(databaseID, collectionID, documentID)
	return err
}

func (s *sdkDatabases) getDatabase(databaseID string) error {
	_, err := s.srv.Get(databaseID)
	return err
}

func (s *sdkDatabases) createDatabase(databaseID, name string) error {
	_, err := s.srv.Create(databaseID, name)
	return err
}

func (s *sdkDatabases) createCollection(databaseID, collectionID, name string) error {
	_, err := s.srv.CreateCollection(databaseID, collectionID, name,
		s.srv.WithCreateCollectionDocumentSecurity(false),
	)
	return err
}

// createAttribute создаёт атрибут по его виду. Appwrite не принимает default
// для обязательных атрибутов, поэтому он отправляется только для необязательных.
func (s *sdkDatabases) createAttribute(databaseID, collectionID string, attr Attribute) error {
	withDefault := attr.Default != nil && !attr.Required

	switch attr.Kind {
	case AttributeString:
		var opts []databases.CreateStringAttributeOption
		if def, ok := attr.Default.(string); ok && withDefault {
			opts = append(opts, s.srv.WithCreateStringAttributeDefault(def))
		}
		_, err := s.srv.CreateStringAttribute(databaseID, collectionID, attr.Key, attr.Size, attr.Required, opts...)
		return err

	case AttributeInteger:
		var opts []databases.CreateIntegerAttributeOption
		if attr.Min != nil {
			opts = append(opts, s.srv.WithCreateIntegerAttributeMin(int(*attr.Min)))
		}
		if attr.Max != nil {
			opts = append(opts, s.srv.WithCreateIntegerAttributeMax(int(*attr.Max)))
		}
		if def, ok := attr.Default.(int); ok && withDefault {
			opts = append(opts, s.srv.WithCreateIntegerAttributeDefault(def))
		}
		_, err := s.srv.CreateIntegerAttribute(databaseID, collectionID, attr.Key, attr.Required, opts...)
		return err

	case AttributeEnum:
		var opts []databases.CreateEnumAttributeOption
		if def, ok := attr.Default.(string); ok && withDefault {
			opts = append(opts, s.srv.WithCreateEnumAttributeDefault(def))
		}
		_, err := s.srv.CreateEnumAttribute(databaseID, collectionID, attr.Key, attr.Elements, attr.Required, opts...)
		return err

	default:
		return fmt.Errorf("unsupported attribute kind %q", attr.Kind)
	}
}

func (s *sdkDatabases) createIndex(databaseID, collectionID string, idx Index) error {
	_, err := s.srv.CreateIndex(databaseID, collectionID, idx.Key, idx.Type(), idx.Attributes,
		s.srv.WithCreateIndexOrders(idx.Orders),
	)
	return err
}

var _ databaseAPI = (*sdkDatabases)(nil)

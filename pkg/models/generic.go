package models

// GenericEntity stores an opaque JSON payload with no schema beyond the id
// grammar. Partial updates use the plain deep-merge.
type GenericEntity struct {
	base
}

// NewGenericEntity validates the id and wraps the data.
func NewGenericEntity(id string, data any) (*GenericEntity, error) {
	b, err := newBase(id, data)
	if err != nil {
		return nil, err
	}
	return &GenericEntity{base: b}, nil
}

// GenericFactory adapts NewGenericEntity to the Factory signature.
func GenericFactory(id string, data any) (Entity, error) {
	return NewGenericEntity(id, data)
}

func (e *GenericEntity) Merge(partial any) (Entity, error) {
	return &GenericEntity{base: e.base.mergeData(partial)}, nil
}

func (e *GenericEntity) WithETag(etag string) Entity {
	return &GenericEntity{base: e.base.withETag(etag)}
}

func (e *GenericEntity) WithMetadata(meta *Metadata) Entity {
	return &GenericEntity{base: e.base.withMetadata(meta)}
}

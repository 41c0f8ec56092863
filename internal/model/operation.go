package model

import "fmt"

// OpKind is the incremental mutation applied to one remote row.
type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

func ParseOpKind(s string) (OpKind, error) {
	switch k := OpKind(s); k {
	case OpCreate, OpUpdate, OpDelete:
		return k, nil
	}
	return "", fmt.Errorf("unknown operation %q", s)
}

// EntityType names a remote collection.
type EntityType string

const (
	EntityTask   EntityType = "task"
	EntityClient EntityType = "client"
	EntityUser   EntityType = "user"
)

func ParseEntityType(s string) (EntityType, error) {
	switch e := EntityType(s); e {
	case EntityTask, EntityClient, EntityUser:
		return e, nil
	}
	return "", fmt.Errorf("unknown entity type %q", s)
}

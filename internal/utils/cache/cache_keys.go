package cache

import (
	"fmt"
	"strings"
)

type EntityType string

const (
	EntityUser        EntityType = "user"
	EntityWallet      EntityType = "wallet"
	EntityTransaction EntityType = "transaction"
	EntityRate        EntityType = "rate"
)

type KeyType string

const (
	KeyID     KeyType = "id"
	KeyEmail  KeyType = "email"
	KeyPhone  KeyType = "phone"
	KeyNumber KeyType = "number"
	KeyPair   KeyType = "pair"
)

// GenerateKey creates a standardized cache key
func GenerateKey(entity EntityType, keyType KeyType, value interface{}) string {
	return fmt.Sprintf("%s:%s:%v", entity, keyType, value)
}

// GenerateCompositeKey creates a cache key with multiple components
func GenerateCompositeKey(entity EntityType, components map[string]interface{}) string {
	var parts []string
	parts = append(parts, string(entity))

	for k, v := range components {
		parts = append(parts, fmt.Sprintf("%s:%v", k, v))
	}

	return strings.Join(parts, ":")
}

package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// permissionKeys maps the module configuration keys of the medical module
// to catalog operation names. The query keys also guard the full listing
// unless a dedicated full key follows them.
var permissionKeys = []struct {
	key string
	ops []string
}{
	{"gql_query_diagnosis_perms", []string{"query_diagnoses"}},
	{"gql_query_medical_items_perms", []string{"query_items", "query_items_full"}},
	{"gql_query_medical_services_perms", []string{"query_services", "query_services_full"}},
	{"gql_query_medical_items_full_perms", []string{"query_items_full"}},
	{"gql_query_medical_services_full_perms", []string{"query_services_full"}},
	{"gql_mutation_medical_items_add_perms", []string{"create_item"}},
	{"gql_mutation_medical_items_update_perms", []string{"update_item"}},
	{"gql_mutation_medical_items_delete_perms", []string{"delete_item"}},
	{"gql_mutation_medical_services_add_perms", []string{"create_service"}},
	{"gql_mutation_medical_services_update_perms", []string{"update_service"}},
	{"gql_mutation_medical_services_delete_perms", []string{"delete_service"}},
}

// LoadPermissionOverrides reads a yaml, json or toml permission file and
// returns the operations it sets, keyed by operation name. Keys absent from
// the file are not returned; an empty path yields no overrides.
func LoadPermissionOverrides(path string) (map[string][]string, error) {
	if path == "" {
		return map[string][]string{}, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read permission file %s: %w", path, err)
	}

	overrides := make(map[string][]string)
	for _, entry := range permissionKeys {
		if !v.IsSet(entry.key) {
			continue
		}
		perms := v.GetStringSlice(entry.key)
		if perms == nil {
			perms = []string{}
		}
		for _, op := range entry.ops {
			overrides[op] = perms
		}
	}
	return overrides, nil
}

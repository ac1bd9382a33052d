package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/gaurav-dalvi/aci-integration-module/internal/hashtree"
	"github.com/gaurav-dalvi/aci-integration-module/internal/types"
)

// Store also satisfies universe.Source and dispatcher.Manager, over the
// resources table: the "something real to read from and write to" the
// DesiredUniverse/DesiredOperationalUniverse pair needs, as distinct from
// the intents table's sync-state bookkeeping above.

func resourceKeyFor(tenant types.TenantID, r types.Resource) types.ResourceKey {
	return types.ResourceKey{"Tenant|" + string(tenant), r.Type + "|" + r.ObjectID().Identity}
}

func faultKeyFor(tenant types.TenantID, parent types.Resource, fault types.Fault) types.ResourceKey {
	return types.ResourceKey{
		"Tenant|" + string(tenant),
		parent.Type + "|" + parent.ObjectID().Identity,
		types.FaultTypeSentinel + "|" + fault.FaultCode,
	}
}

func splitKeyPath(path string) types.ResourceKey {
	return types.ResourceKey(strings.Split(path, "/"))
}

func (s *Store) putResource(ctx context.Context, key types.ResourceKey, tenant types.TenantID, r types.Resource) error {
	identity, err := json.Marshal(r.Identity)
	if err != nil {
		return fmt.Errorf("store: marshal identity: %w", err)
	}
	attrs, err := json.Marshal(r.Attributes)
	if err != nil {
		return fmt.Errorf("store: marshal attributes: %w", err)
	}

	ctx, span := tracer.Start(ctx, "store.put_resource", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(append(s.spanAttrs(), attribute.String("db.operation", "put_resource"))...))
	err = s.withRetry(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx, `
			INSERT INTO resources (tenant_id, key_path, resource_type, identity_json, attributes_json, updated_at)
			VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON DUPLICATE KEY UPDATE
				resource_type = VALUES(resource_type),
				identity_json = VALUES(identity_json),
				attributes_json = VALUES(attributes_json),
				updated_at = CURRENT_TIMESTAMP
		`, string(tenant), key.String(), r.Type, string(identity), string(attrs))
		return execErr
	})
	endSpan(span, err)
	return err
}

func (s *Store) deleteResource(ctx context.Context, key types.ResourceKey, tenant types.TenantID) error {
	ctx, span := tracer.Start(ctx, "store.delete_resource", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(append(s.spanAttrs(), attribute.String("db.operation", "delete_resource"))...))
	err := s.withRetry(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx,
			"DELETE FROM resources WHERE tenant_id = ? AND key_path = ?", string(tenant), key.String())
		return execErr
	})
	endSpan(span, err)
	return err
}

// Upsert implements dispatcher.Manager for ordinary (non-fault) resources.
func (s *Store) Upsert(ctx context.Context, tenant types.TenantID, r types.Resource) error {
	return s.putResource(ctx, resourceKeyFor(tenant, r), tenant, r)
}

// Remove implements dispatcher.Manager for ordinary (non-fault) resources.
func (s *Store) Remove(ctx context.Context, tenant types.TenantID, r types.Resource) error {
	return s.deleteResource(ctx, resourceKeyFor(tenant, r), tenant)
}

// SetFault implements dispatcher.Manager: it records the fault as a leaf
// under its recovered parent's key, carrying the attributes types.AsFault
// reads back out.
func (s *Store) SetFault(ctx context.Context, tenant types.TenantID, parent types.Resource, fault types.Fault) error {
	r := types.Resource{
		Type: types.FaultTypeSentinel,
		Attributes: map[string]any{
			types.AttrFaultCode:          fault.FaultCode,
			types.AttrExternalIdentifier: fault.ExternalIdentifier,
			types.AttrParentDN:           fault.ParentDN,
		},
	}
	return s.putResource(ctx, faultKeyFor(tenant, parent, fault), tenant, r)
}

// ClearFault implements dispatcher.Manager.
func (s *Store) ClearFault(ctx context.Context, tenant types.TenantID, parent types.Resource, fault types.Fault) error {
	return s.deleteResource(ctx, faultKeyFor(tenant, parent, fault), tenant)
}

// Resources implements universe.Source: every stored resource for tenant,
// keyed by its full ResourceKey path.
func (s *Store) Resources(ctx context.Context, tenant types.TenantID) (map[string]types.Resource, map[string]types.ResourceKey, error) {
	ctx, span := tracer.Start(ctx, "store.resources", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(s.spanAttrs()...))
	defer span.End()

	resources := make(map[string]types.Resource)
	keys := make(map[string]types.ResourceKey)
	err := s.withRetry(ctx, func() error {
		rows, queryErr := s.db.QueryContext(ctx,
			"SELECT key_path, resource_type, identity_json, attributes_json FROM resources WHERE tenant_id = ?",
			string(tenant))
		if queryErr != nil {
			return queryErr
		}
		defer rows.Close()

		for rows.Next() {
			var keyPath, resourceType, identityJSON string
			var attrsJSON sql.NullString
			if scanErr := rows.Scan(&keyPath, &resourceType, &identityJSON, &attrsJSON); scanErr != nil {
				return scanErr
			}
			var identity []string
			if jsonErr := json.Unmarshal([]byte(identityJSON), &identity); jsonErr != nil {
				return jsonErr
			}
			var attrs map[string]any
			if attrsJSON.Valid && attrsJSON.String != "" && attrsJSON.String != "null" {
				if jsonErr := json.Unmarshal([]byte(attrsJSON.String), &attrs); jsonErr != nil {
					return jsonErr
				}
			}
			resources[keyPath] = types.Resource{Type: resourceType, Identity: identity, Attributes: attrs}
			keys[keyPath] = splitKeyPath(keyPath)
		}
		return rows.Err()
	})
	if err != nil {
		span.RecordError(err)
		return nil, nil, fmt.Errorf("store: resources: %w", err)
	}
	return resources, keys, nil
}

// FindChanged implements universe.Source by building a Tree per tenant from
// the stored resources. lastKnownRootHash is accepted for interface
// conformance but not consulted: this reference backend always recomputes,
// leaving the optimization described by get_optimized_state to a real
// controller-backed Source.
func (s *Store) FindChanged(ctx context.Context, tenants []types.TenantID, lastKnownRootHash map[types.TenantID]string, operational bool) (hashtree.View, error) {
	view := make(hashtree.View, len(tenants))
	for _, tenant := range tenants {
		resources, keys, err := s.Resources(ctx, tenant)
		if err != nil {
			return nil, err
		}
		if operational {
			resources, keys = faultsOnly(resources, keys)
		}
		view[tenant] = hashtree.New(resources, keys)
	}
	return view, nil
}

func faultsOnly(resources map[string]types.Resource, keys map[string]types.ResourceKey) (map[string]types.Resource, map[string]types.ResourceKey) {
	fr := make(map[string]types.Resource, len(resources))
	fk := make(map[string]types.ResourceKey, len(keys))
	for path, r := range resources {
		if r.IsFault() {
			fr[path] = r
			fk[path] = keys[path]
		}
	}
	return fr, fk
}

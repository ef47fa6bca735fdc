// Package schema describes the components a DQL statement can reference.
//
// A component maps to a table, declares its fields with package field and
// its relations with package edge, and is registered in a Registry that the
// compiler queries read-only:
//
//	reg := schema.NewRegistry()
//	err := reg.Register(
//	    schema.Component{
//	        Name:  "User",
//	        Table: "user_table",
//	        Fields: []schema.Field{
//	            field.ID(),
//	            field.String("name"),
//	        },
//	        Edges: []schema.Edge{
//	            edge.HasMany("Phonenumber", "Phonenumber").Foreign("entity_id"),
//	            edge.ManyToMany("Group", "Group").Through("Groupuser", "groupuser"),
//	        },
//	    },
//	    schema.Component{
//	        Name:   "Phonenumber",
//	        Fields: []schema.Field{field.ID(), field.String("phonenumber"), field.Int("entity_id")},
//	    },
//	)
//
// # Attributes
//
// QueryLimit selects how LIMIT applies to statements rooted at a component
// (LimitRecords by default: limit the distinct root records even when a
// to-many relation multiplies the rows). FetchMode and CollectionLimit drive
// the columns selected for components a statement does not list.
//
// # Inheritance
//
// Components sharing a table declare an inheritance map; statements add the
// discriminator predicate for every such component they touch:
//
//	schema.Component{Name: "Manager", Table: "employee", Inheritance: map[string]any{"type": 1}}
package schema

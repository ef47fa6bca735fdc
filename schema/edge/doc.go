// Package edge provides fluent builders for declaring the relations of a
// DQL component.
//
// # Relation Kinds
//
//	// One-to-One: the owner holds the key of the target.
//	edge.HasOne("Email", "Email").Local("email_id").Foreign("id")
//
//	// One-to-Many: the target holds the key of the owner.
//	edge.HasMany("Phonenumber", "Phonenumber").Local("id").Foreign("entity_id")
//
//	// Many-to-Many: both keys live in an association table.
//	edge.ManyToMany("Group", "Group").
//	    Through("Groupuser", "groupuser").
//	    Local("user_id").
//	    Foreign("group_id")
//
// A many-to-many relation whose target is its owner is self-referential;
// joins through it match the association row in both directions.
//
// Keys left empty get conventional defaults when the component is
// registered: see schema.Registry.Register.
package edge

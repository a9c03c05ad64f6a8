// Package seed ships the demo directory the server and the console chat
// start with.
package seed

import "github.com/iota-uz/accessdesk/modules/access/domain/directory"

func People() []*directory.Person {
	return []*directory.Person{
		{ID: "maria", Name: "Maria Sokolova", Email: "maria@accessdesk.local", Role: directory.RoleAdmin},
		{ID: "dmitry", Name: "Dmitry Orlov", Email: "dmitry@accessdesk.local", Role: directory.RoleManager},
		{ID: "lena", Name: "Lena Kim", Email: "lena@accessdesk.local", Role: directory.RoleLead},
		{ID: "ivan", Name: "Ivan Petrov", Email: "ivan@accessdesk.local", Role: directory.RoleEmployee},
		{ID: "olga", Name: "Olga Smirnova", Email: "olga@accessdesk.local", Role: directory.RoleEmployee},
	}
}

func Projects() []*directory.Project {
	return []*directory.Project{
		{ID: "phoenix", Name: "Phoenix", OwnerID: "lena", MemberIDs: []string{"ivan"}},
		{ID: "atlas", Name: "Atlas", OwnerID: "dmitry", MemberIDs: []string{"olga"}},
	}
}

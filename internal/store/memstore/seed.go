package memstore

import (
	"devicehub-api/internal/models"
)

// SeedDevelopment loads the same catalog and users as db/seeds. passwordHash
// is stored for both seeded users; "!" disables login.
func (s *Store) SeedDevelopment(passwordHash string) {
	laptop := s.AddType("Laptop")
	monitor := s.AddType("Monitor")
	phone := s.AddType("Phone")

	s.AddModel(laptop.ID, "MacBook Pro 14")
	s.AddModel(laptop.ID, "ThinkPad X1 Carbon")
	s.AddModel(monitor.ID, "Dell U2720Q")
	s.AddModel(phone.ID, "Pixel 8")

	s.AddOwner("Company")
	s.AddOwner("Client Leasing")

	ada, adminLast := "Ada", "Admin"
	sam, staffLast := "Sam", "Staff"
	s.AddUser(models.User{
		Email:        "admin@devicehub.local",
		PasswordHash: passwordHash,
		FirstName:    &ada,
		LastName:     &adminLast,
		Roles:        []string{models.RoleAdmin},
		IsActive:     true,
	})
	s.AddUser(models.User{
		Email:        "staff@devicehub.local",
		PasswordHash: passwordHash,
		FirstName:    &sam,
		LastName:     &staffLast,
		Roles:        []string{models.RoleStaff},
		IsActive:     true,
	})
}

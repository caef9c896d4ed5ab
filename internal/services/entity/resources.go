package entity

// The DI container resolves dependencies by type, and all three resources
// share *Service. These wrappers give each resource its own resolvable type;
// main registers one instance of each and handlers resolve their own.

// GenericService is the container type for the generic entity resource.
type GenericService struct {
	*Service
}

// UserService is the container type for the user resource.
type UserService struct {
	*Service
}

// GameService is the container type for the game resource.
type GameService struct {
	*Service
}

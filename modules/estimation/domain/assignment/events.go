package assignment

type CreatedEvent struct{ Result *Assignment }

type UpdatedEvent struct{ Result *Assignment }

type DeletedEvent struct{ Result *Assignment }

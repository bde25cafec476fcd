package risk

type CreatedEvent struct{ Result *Risk }

type UpdatedEvent struct{ Result *Risk }

type DeletedEvent struct{ Result *Risk }

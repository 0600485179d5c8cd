package sqlinline

const QCreateIntegrationTokens = `--sql 3f1c9a0e-5b2d-4c6e-9f7a-1d2e3c4b5a69
create table if not exists integration_tokens (
    provider   text primary key,
    token      text not null,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
`

const QSelectIntegrationToken = `--sql 8a8e0d52-7f5d-4f21-8b7d-f7d4b821eed7
select token
from integration_tokens
where provider = $1::text
limit 1;
`

const QUpsertIntegrationToken = `--sql 6d4f5660-0f7c-4f73-a1f3-9ab6d5e6c7a3
insert into integration_tokens (provider, token, created_at, updated_at)
values ($1::text, $2::text, now(), now())
on conflict (provider) do update set
    token = excluded.token,
    updated_at = now();
`

const QDeleteIntegrationToken = `--sql b4c2e7d1-9a3f-4e58-8c16-0f2d7a9e4b31
delete from integration_tokens
where provider = $1::text;
`
